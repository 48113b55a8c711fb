package pagination

import "testing"

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -4: DefaultLimit, 10: 10, MaxLimit + 1: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestParamsOffset(t *testing.T) {
	if got := (Params{Page: 3, Limit: 10}).Offset(); got != 20 {
		t.Fatalf("expected offset 20, got %d", got)
	}
	if got := (Params{}).Offset(); got != 0 {
		t.Fatalf("expected offset 0 for defaults, got %d", got)
	}
}

func TestNewMeta(t *testing.T) {
	meta := NewMeta(Params{Page: 2, Limit: 10}, 25)
	if meta.TotalPages != 3 || !meta.HasNext || !meta.HasPrev {
		t.Fatalf("unexpected meta %+v", meta)
	}

	last := NewMeta(Params{Page: 3, Limit: 10}, 25)
	if last.HasNext {
		t.Fatalf("last page should not have next: %+v", last)
	}

	empty := NewMeta(Params{}, 0)
	if empty.TotalPages != 0 || empty.HasNext || empty.HasPrev {
		t.Fatalf("unexpected empty meta %+v", empty)
	}
}

func TestNewPageNilItems(t *testing.T) {
	page := NewPage[string](nil, Params{}, 0)
	if page.Items == nil {
		t.Fatalf("expected empty slice, got nil")
	}
}
