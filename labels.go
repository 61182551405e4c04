package sacoprep

// Label normalization and ambiguous-class filtering.

import (
	"sort"
	"strings"
)

// LabelMap is a case-insensitive mapping from synonym strings to one
// canonical class label. It canonicalizes only; it never decides inclusion.
type LabelMap map[string]string

// NewLabelMap builds a LabelMap from synonyms, lower-casing the keys.
func NewLabelMap(synonyms map[string]string) LabelMap {
	m := make(LabelMap, len(synonyms))
	for k, v := range synonyms {
		m[strings.ToLower(k)] = v
	}
	return m
}

// Normalize maps label to its canonical form. Unrecognized labels pass
// through unchanged, except for surrounding whitespace.
func (m LabelMap) Normalize(label string) string {
	label = strings.TrimSpace(label)
	if canonical, ok := m[strings.ToLower(label)]; ok {
		return canonical
	}
	return label
}

// DefaultSynonyms is the built-in species/age/sex synonym set for the
// chicken class.
func DefaultSynonyms() map[string]string {
	return map[string]string{
		"rooster":  "chicken",
		"roosters": "chicken",
		"hen":      "chicken",
		"hens":     "chicken",
		"chick":    "chicken",
		"chicks":   "chicken",
		"cock":     "chicken",
		"cocks":    "chicken",
	}
}

// DefaultAmbiguousPatterns are labels that are neither clearly the positive
// class nor clearly background.
func DefaultAmbiguousPatterns() []string {
	return []string{
		"unknown",
		"ambiguous",
		"unclear",
		"unknown bird",
		"unidentified",
		"uncertain",
		"maybe",
		"possibly",
		"questionable",
		"unsure",
	}
}

// AmbiguousMatcher matches labels against a configured ambiguity vocabulary,
// case-insensitively, by substring or exact match.
type AmbiguousMatcher struct {
	patterns []string
}

// NewAmbiguousMatcher builds a matcher from the given patterns.
func NewAmbiguousMatcher(patterns []string) *AmbiguousMatcher {
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &AmbiguousMatcher{patterns: lowered}
}

// Match reports whether label matches any ambiguous pattern.
func (m *AmbiguousMatcher) Match(label string) bool {
	label = strings.ToLower(strings.TrimSpace(label))
	for _, p := range m.patterns {
		if label == p || strings.Contains(label, p) {
			return true
		}
	}
	return false
}

// Exclusion records an image removed by the ambiguity filter and the labels
// that triggered the removal.
type Exclusion struct {
	ImageID  int
	FileName string
	Labels   []string
}

// FilterAmbiguous removes every image whose resolved, post-normalization
// labels match the ambiguity vocabulary, together with all of its regions.
// Images without any resolved regions are never excluded here; absence of
// labels is the negative classifier's concern. Exclusion is final for the
// run.
func FilterAmbiguous(images []ExtractedImage, annotated []AnnotatedImage,
	m *AmbiguousMatcher) ([]ExtractedImage, []AnnotatedImage, []Exclusion) {

	// First pass: collect the matched labels per image id. An image may have
	// annotated entries from more than one adapter; a match in any of them
	// excludes the whole image.
	matchedByID := make(map[int]map[string]bool)
	fileNameByID := make(map[int]string)
	for _, a := range annotated {
		for _, r := range a.Regions {
			if !m.Match(r.Label) {
				continue
			}
			if matchedByID[a.ImageID] == nil {
				matchedByID[a.ImageID] = make(map[string]bool)
				fileNameByID[a.ImageID] = a.FileName
			}
			matchedByID[a.ImageID][r.Label] = true
		}
	}

	exclusions := make([]Exclusion, 0, len(matchedByID))
	for id, matched := range matchedByID {
		labels := make([]string, 0, len(matched))
		for l := range matched {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		exclusions = append(exclusions, Exclusion{
			ImageID:  id,
			FileName: fileNameByID[id],
			Labels:   labels,
		})
	}
	sort.Slice(exclusions, func(i, j int) bool { return exclusions[i].ImageID < exclusions[j].ImageID })

	keptAnnotated := make([]AnnotatedImage, 0, len(annotated))
	for _, a := range annotated {
		if matchedByID[a.ImageID] == nil {
			keptAnnotated = append(keptAnnotated, a)
		}
	}

	keptImages := make([]ExtractedImage, 0, len(images))
	for _, img := range images {
		if matchedByID[img.Record.ID] == nil {
			keptImages = append(keptImages, img)
		}
	}

	return keptImages, keptAnnotated, exclusions
}
