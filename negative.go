package sacoprep

// Negative-sample classification and verification.

import "sort"

// DirConflict records an image that sits under the negative-class directory
// but carries resolved annotations. Annotation presence wins: the image is
// classified positive and its annotations are kept, and the conflict is
// surfaced for manual correction of the file tree.
type DirConflict struct {
	ImageID     int
	FileName    string
	Annotations int
}

// NegativeReport partitions the extracted images into positive and negative
// sets and itemizes everything the verification step cares about.
//
// ByDirectory and ByNoAnnotations count the two negative reasons
// independently; an image under the negative directory with no annotations
// contributes to both.
type NegativeReport struct {
	Positives []int // Image ids with at least one resolved annotation.
	Negatives []int // Image ids with zero resolved annotations.

	ByDirectory     int // Negatives placed under the negative-class directory.
	ByNoAnnotations int // Negatives with zero resolved annotations.

	DirConflicts []DirConflict // Annotated images found in the negative directory.

	// UnlabeledInPositiveDir lists positive-directory images without any
	// resolved annotations; they are valid negatives but likely belong in
	// the negative directory.
	UnlabeledInPositiveDir []string
}

// ClassifyNegatives determines, per image, whether it is a negative sample.
// It must run strictly after all adapters have produced their output for the
// run; an image cannot be judged annotation-free before its label files have
// been parsed. The classifier only partitions; it never fabricates or
// deletes annotations.
func ClassifyNegatives(images []ExtractedImage, annotated []AnnotatedImage) NegativeReport {
	regionCounts := make(map[int]int)
	for _, a := range annotated {
		regionCounts[a.ImageID] += len(a.Regions)
	}

	var report NegativeReport
	for _, img := range images {
		n := regionCounts[img.Record.ID]

		if n > 0 {
			report.Positives = append(report.Positives, img.Record.ID)
			if img.Negative {
				report.DirConflicts = append(report.DirConflicts, DirConflict{
					ImageID:     img.Record.ID,
					FileName:    img.Record.FileName,
					Annotations: n,
				})
			}
			continue
		}

		report.Negatives = append(report.Negatives, img.Record.ID)
		report.ByNoAnnotations++
		if img.Negative {
			report.ByDirectory++
		} else {
			report.UnlabeledInPositiveDir = append(report.UnlabeledInPositiveDir,
				img.Record.FileName)
		}
	}

	sort.Ints(report.Positives)
	sort.Ints(report.Negatives)

	return report
}
