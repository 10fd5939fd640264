package shape

import "testing"

func TestSizeRankZero(t *testing.T) {
	var s Shape
	if s.Size() != 1 {
		t.Fatalf("rank-0 size = %d, want 1", s.Size())
	}
	if s.Rank() != 0 {
		t.Fatalf("rank-0 rank = %d, want 0", s.Rank())
	}
}

func TestBroadcastCases(t *testing.T) {
	cases := []struct {
		lhs, rhs, want Shape
	}{
		{Shape{8, 1, 6, 1}, Shape{7, 1, 5}, Shape{8, 7, 6, 5}},
		{Shape{5, 4}, Shape{1}, Shape{5, 4}},
		{Shape{5, 4}, Shape{4}, Shape{5, 4}},
		{Shape{15, 3, 5}, Shape{15, 1, 5}, Shape{15, 3, 5}},
		{Shape{3}, Shape{4}, nil},
	}
	for _, c := range cases {
		got, err := Broadcast(c.lhs, c.rhs)
		if c.want == nil {
			if err == nil {
				t.Errorf("Broadcast(%v, %v) expected error", c.lhs, c.rhs)
			}
			continue
		}
		if err != nil {
			t.Errorf("Broadcast(%v, %v): %v", c.lhs, c.rhs, err)
			continue
		}
		if !got.Equal(c.want) {
			t.Errorf("Broadcast(%v, %v) = %v, want %v", c.lhs, c.rhs, got, c.want)
		}
	}
}

func TestBroadcastStrides(t *testing.T) {
	shapeOf := Shape{1, 6}
	strides := []int{6, 1}
	out := Shape{8, 6}
	got, err := BroadcastStrides(nil, strides, shapeOf, out)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("strides = %v, want %v", got, want)
		}
	}
}
