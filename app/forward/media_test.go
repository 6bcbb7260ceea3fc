package forward

import (
	"testing"

	e "baleforward/pkg/entities"
)

func TestPlanMedia_NoPhotos(t *testing.T) {
	plan := PlanMedia(nil, "just text")
	if plan.Kind != PlanNone {
		t.Errorf("kind = %v, want PlanNone", plan.Kind)
	}
	if len(plan.Items) != 0 {
		t.Errorf("items = %d, want 0", len(plan.Items))
	}
}

func TestPlanMedia_SinglePhoto(t *testing.T) {
	photos := []e.PhotoRef{{FileID: "f1", Caption: "raw caption"}}

	plan := PlanMedia(photos, "composed caption")

	if plan.Kind != PlanSingle {
		t.Fatalf("kind = %v, want PlanSingle", plan.Kind)
	}
	if plan.Items[0].FileID != "f1" {
		t.Errorf("file id = %q, want f1", plan.Items[0].FileID)
	}
	if plan.Items[0].Caption != "composed caption" {
		t.Errorf("caption = %q, want the composed caption", plan.Items[0].Caption)
	}
}

func TestPlanMedia_SinglePhotoFallsBackToOwnCaption(t *testing.T) {
	photos := []e.PhotoRef{{FileID: "f1", Caption: "own"}}

	plan := PlanMedia(photos, "")

	if plan.Items[0].Caption != "own" {
		t.Errorf("caption = %q, want own", plan.Items[0].Caption)
	}
}

func TestPlanMedia_GroupCaptionOnFirstPhotoOnly(t *testing.T) {
	photos := []e.PhotoRef{
		{FileID: "f1", MediaGroupID: "g1"},
		{FileID: "f2", MediaGroupID: "g1"},
		{FileID: "f3", MediaGroupID: "g1"},
	}

	plan := PlanMedia(photos, "Hello")

	if plan.Kind != PlanAlbum {
		t.Fatalf("kind = %v, want PlanAlbum", plan.Kind)
	}
	if len(plan.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(plan.Items))
	}
	if plan.Items[0].Caption != "Hello" {
		t.Errorf("first caption = %q, want Hello", plan.Items[0].Caption)
	}
	for i, item := range plan.Items[1:] {
		if item.Caption != "" {
			t.Errorf("item %d caption = %q, want empty", i+1, item.Caption)
		}
	}
	for i, want := range []string{"f1", "f2", "f3"} {
		if plan.Items[i].FileID != want {
			t.Errorf("item %d file id = %q, want %q", i, plan.Items[i].FileID, want)
		}
	}
}

func TestPlanMedia_LoneGroupedPhotoStaysAlbum(t *testing.T) {
	photos := []e.PhotoRef{{FileID: "f1", MediaGroupID: "g1"}}

	plan := PlanMedia(photos, "cap")

	if plan.Kind != PlanAlbum {
		t.Errorf("kind = %v, want PlanAlbum", plan.Kind)
	}
}
