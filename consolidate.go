package sacoprep

// Dataset consolidation: merging the adapter and extractor streams into one
// SA-Co dataset.

import (
	"log"
	"sort"
)

// ConsolidateStats counts the outcomes of one merge.
type ConsolidateStats struct {
	Images            int
	DuplicateImages   int // Dropped duplicates; the first-seen record wins.
	Annotations       int
	OrphanAnnotations int // Regions whose image id resolved to no merged image.
}

// Consolidate merges the extracted image records and the adapters' resolved
// regions into one dataset. Images are keyed by id; on a duplicate id the
// first-seen record wins and the duplicate is dropped and counted, so the
// output invariant of unique image ids holds before split and validation.
// Annotation ids are assigned centrally, monotonically increasing from 1.
func Consolidate(images []ExtractedImage, annotated []AnnotatedImage,
	category CategoryRecord) (*Dataset, ConsolidateStats) {

	var stats ConsolidateStats

	ds := &Dataset{
		Images:     make([]ImageRecord, 0, len(images)),
		Categories: []CategoryRecord{category},
	}

	seen := make(map[int]bool, len(images))
	for _, img := range images {
		if seen[img.Record.ID] {
			stats.DuplicateImages++
			continue
		}
		seen[img.Record.ID] = true
		ds.Images = append(ds.Images, img.Record)
	}
	stats.Images = len(ds.Images)

	// Assign annotation ids in image-id order so a fixed input set always
	// produces an identical dataset regardless of adapter ordering.
	sorted := make([]AnnotatedImage, len(annotated))
	copy(sorted, annotated)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ImageID < sorted[j].ImageID })

	nextID := 1
	for _, a := range sorted {
		if !seen[a.ImageID] {
			// Every annotation must resolve to a merged image; regions for
			// unknown ids would break the referential invariant.
			log.Printf("Dropping %d regions for unknown image id %d (%q)",
				len(a.Regions), a.ImageID, a.FileName)
			stats.OrphanAnnotations += len(a.Regions)
			continue
		}

		for _, r := range a.Regions {
			ds.Annotations = append(ds.Annotations, AnnotationRecord{
				ID:           nextID,
				ImageID:      a.ImageID,
				CategoryID:   category.ID,
				Segmentation: [][]float64{r.Points},
				BBox:         polygonBBox(r.Points),
				Area:         polygonArea(r.Points),
				IsCrowd:      0,
			})
			nextID++
		}
	}
	stats.Annotations = len(ds.Annotations)

	if stats.DuplicateImages > 0 {
		log.Printf("Dropped %d duplicate image records during consolidation",
			stats.DuplicateImages)
	}

	return ds, stats
}
