package pipeline

import (
	"reflect"
	"testing"
)

func TestCleanHeading(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"## 2.1 Light Reactions", "Light Reactions"},
		{"# 1. Introduction", "Introduction"},
		{"### Calvin Cycle", "Calvin Cycle"},
		{"## 3 Summary", "Summary"},
		{"#Intro", "Intro"},
		{"# C4 plants", "C4 plants"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			if got := CleanHeading(tc.in); got != tc.want {
				t.Fatalf("CleanHeading(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestEligibleHeadingBoundary(t *testing.T) {
	if eligibleHeading("Abcde", 5) {
		t.Fatalf("length 5 must not be eligible")
	}
	if !eligibleHeading("Abcdef", 5) {
		t.Fatalf("length 6 must be eligible")
	}
	if eligibleHeading("Fläche", 6) {
		t.Fatalf("length is measured in runes")
	}
}

func TestHeadingLines(t *testing.T) {
	outline := "# Photosynthesis\nintro text\n  ## 1. Light\n- bullet\n### 1.1 Chlorophyll\n"
	want := []string{"# Photosynthesis", "## 1. Light", "### 1.1 Chlorophyll"}
	if got := HeadingLines(outline); !reflect.DeepEqual(got, want) {
		t.Fatalf("HeadingLines = %v, want %v", got, want)
	}
}

func TestBuildCorpus(t *testing.T) {
	got := BuildCorpus([]Record{
		{Origin: "https://a.example", Content: "alpha"},
		{Origin: "https://www.youtube.com/watch?v=1, https://www.youtube.com/watch?v=2", Content: "beta"},
	})
	want := "[SOURCE 1]: URL = https://a.example\nCONTENT: alpha\n\n" +
		"[SOURCE 2]: URL = https://www.youtube.com/watch?v=1, https://www.youtube.com/watch?v=2\nCONTENT: beta\n\n"
	if got != want {
		t.Fatalf("BuildCorpus =\n%q\nwant\n%q", got, want)
	}
}

func TestImageInstructions(t *testing.T) {
	got := ImageInstructions([]Image{
		{Heading: "## Light Reactions", URL: "https://img/1.png"},
		{Heading: "## Calvin Cycle", URL: "https://img/2.png"},
	})
	want := "- For section '## Light Reactions', use image URL: https://img/1.png\n" +
		"- For section '## Calvin Cycle', use image URL: https://img/2.png"
	if got != want {
		t.Fatalf("ImageInstructions =\n%s\nwant\n%s", got, want)
	}
}
