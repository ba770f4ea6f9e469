package table

import "testing"

func TestSimplifyDependencyNamesNoCollision(t *testing.T) {
	names, err := simplifyDependencyNames([]string{
		"data/snapshots/population/census.csv",
		"data/tables/income/survey.parquet",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if names["population"] != "data/snapshots/population/census.csv" {
		t.Fatalf("expected population -> census path, got %v", names)
	}
	if names["income"] != "data/tables/income/survey.parquet" {
		t.Fatalf("expected income -> survey path, got %v", names)
	}
}

func TestSimplifyDependencyNamesCollisionExtendsLeft(t *testing.T) {
	names, err := simplifyDependencyNames([]string{
		"data/2020/census/part.csv",
		"data/2021/census/part.csv",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 unique names, got %v", names)
	}
	if _, ok := names["2020_census"]; !ok {
		t.Fatalf("expected 2020_census in %v", names)
	}
	if _, ok := names["2021_census"]; !ok {
		t.Fatalf("expected 2021_census in %v", names)
	}
}

func TestSimplifyDependencyNamesSingleSegment(t *testing.T) {
	names, err := simplifyDependencyNames([]string{"census.csv"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if names["census.csv"] != "census.csv" {
		t.Fatalf("expected identity mapping for single-segment path, got %v", names)
	}
}

func TestSimplifyDependencyNamesUnresolvable(t *testing.T) {
	_, err := simplifyDependencyNames([]string{
		"a/b/census.csv",
		"a/b/census.csv",
	})
	if err == nil {
		t.Fatalf("expected error once both generators are exhausted without resolving, got nil")
	}
}
