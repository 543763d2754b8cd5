package project

import "testing"

func TestFeatureValue(t *testing.T) {
	p := &Project{Slug: "pip", Features: []Feature{FeatureUseLatestSphinx}}

	if !p.HasFeature(FeatureUseLatestSphinx) {
		t.Fatal("carried feature not reported")
	}
	if got := FeatureValue(p, FeatureUseLatestSphinx, "sphinx", "sphinx<2"); got != "sphinx" {
		t.Fatalf("positive selection: %q", got)
	}
	if got := FeatureValue(p, FeatureLegacyMkDocs, "mkdocs==0.17.3", "mkdocs<1.1"); got != "mkdocs<1.1" {
		t.Fatalf("negative selection: %q", got)
	}
}
