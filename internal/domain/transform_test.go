package domain

import "testing"

func TestTransformStatusTerminal(t *testing.T) {
	tests := []struct {
		status   TransformStatus
		terminal bool
		valid    bool
	}{
		{StatusProcessing, false, true},
		{StatusCompleted, true, true},
		{StatusFailed, true, true},
		{TransformStatus("queued"), false, false},
	}
	for _, tc := range tests {
		if got := tc.status.Terminal(); got != tc.terminal {
			t.Fatalf("%s.Terminal() = %v, want %v", tc.status, got, tc.terminal)
		}
		if got := tc.status.Valid(); got != tc.valid {
			t.Fatalf("%s.Valid() = %v, want %v", tc.status, got, tc.valid)
		}
	}
}

func TestListFilterOffset(t *testing.T) {
	tests := []struct {
		page, limit, want int
	}{
		{0, 10, 0},
		{1, 10, 0},
		{2, 10, 10},
		{5, 20, 80},
	}
	for _, tc := range tests {
		f := ListFilter{Page: tc.page, Limit: tc.limit}
		if got := f.Offset(); got != tc.want {
			t.Fatalf("Offset(page=%d, limit=%d) = %d, want %d", tc.page, tc.limit, got, tc.want)
		}
	}
}

func TestTransformJobPollable(t *testing.T) {
	var nilJob *TransformJob
	if nilJob.Pollable() {
		t.Fatal("nil job must not be pollable")
	}
	if (&TransformJob{}).Pollable() {
		t.Fatal("job without provider id must not be pollable")
	}
	if !(&TransformJob{ProviderJobID: "p-1"}).Pollable() {
		t.Fatal("job with provider id must be pollable")
	}
}
