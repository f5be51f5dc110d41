package roi

import (
	"sync"
	"testing"
)

func TestStoreAddAssignsMonotonicIDs(t *testing.T) {
	s := New()
	r := ROI{Category: Nucleus, Geometry: FromRectangle(Rectangle{Width: 1, Height: 1})}

	id0 := s.Add("img-1", r)
	id1 := s.Add("img-1", r)
	if id0 != 0 || id1 != 1 {
		t.Fatalf("expected ids 0,1 got %d,%d", id0, id1)
	}

	if err := s.Remove("img-1", id0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	id2 := s.Add("img-1", r)
	if id2 != 2 {
		t.Fatalf("expected id not reused, got %d", id2)
	}
}

func TestStoreConcurrentAddDifferentImages(t *testing.T) {
	s := New()
	r := ROI{Category: Vessel, Geometry: FromRectangle(Rectangle{Width: 1, Height: 1})}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Add(imageKeyFor(i), r)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		if got := len(s.GetAll(imageKeyFor(i))); got != 50 {
			t.Fatalf("image %d: expected 50 ROIs, got %d", i, got)
		}
	}
}

func imageKeyFor(i int) string {
	return string(rune('a' + i))
}

func TestStoreByCategory(t *testing.T) {
	s := New()
	s.Add("img", ROI{Category: Nucleus, Geometry: FromRectangle(Rectangle{Width: 1, Height: 1})})
	s.Add("img", ROI{Category: Vessel, Geometry: FromRectangle(Rectangle{Width: 1, Height: 1})})
	s.Add("img", ROI{Category: Nucleus, Geometry: FromRectangle(Rectangle{Width: 1, Height: 1})})

	if got := len(s.ByCategory("img", Nucleus)); got != 2 {
		t.Fatalf("expected 2 nuclei, got %d", got)
	}
	if got := len(s.ByCategory("img", Vessel)); got != 1 {
		t.Fatalf("expected 1 vessel, got %d", got)
	}
}

func TestStoreUpdateSetsFeaturesOnce(t *testing.T) {
	s := New()
	id := s.Add("img", ROI{Category: Nucleus, Geometry: FromRectangle(Rectangle{Width: 1, Height: 1})})

	err := s.Update("img", id, func(r ROI) ROI {
		return r.WithFeatures(map[string]FeatureValue{"area": Num(42)})
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, ok := s.Get("img", id)
	if !ok {
		t.Fatal("expected ROI to exist")
	}
	if got.Features["area"].Number != 42 {
		t.Fatalf("expected area 42, got %v", got.Features["area"])
	}
}

func TestTotalCountByCategory(t *testing.T) {
	s := New()
	s.Add("a", ROI{Category: Cell, Geometry: FromRectangle(Rectangle{Width: 1, Height: 1})})
	s.Add("b", ROI{Category: Cell, Geometry: FromRectangle(Rectangle{Width: 1, Height: 1})})
	s.Add("b", ROI{Category: Vessel, Geometry: FromRectangle(Rectangle{Width: 1, Height: 1})})

	counts := s.TotalCountByCategory()
	if counts[Cell] != 2 {
		t.Fatalf("expected 2 cells, got %d", counts[Cell])
	}
	if counts[Vessel] != 1 {
		t.Fatalf("expected 1 vessel, got %d", counts[Vessel])
	}
}
