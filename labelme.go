package sacoprep

// LabelMe format specific functionality.

import (
	"encoding/json"
	"log"
	"os"
)

// labelMeShape is a single shape within a LabelMe document.
type labelMeShape struct {
	Label     string      `json:"label"`
	Points    [][]float64 `json:"points"`
	ShapeType string      `json:"shape_type"`
}

// labelMeFile is the subset of the LabelMe document this pipeline consumes.
// Optional keys like imageData and flags are ignored at parse time.
type labelMeFile struct {
	Shapes []labelMeShape `json:"shapes"`
}

// LabelMeStats counts the outcomes of one LabelMe parsing pass.
type LabelMeStats struct {
	LabelFiles     int // .json files found.
	Processed      int // Files converted into at least one polygon.
	SkippedEmpty   int // Files whose shapes were all discarded or absent.
	SkippedNoImage int // Files with no matching image by stem.
	Polygons       int // Polygons extracted.
	Degenerate     int // Shapes discarded for having fewer than 3 points.
	ParseErrors    int // Files skipped for malformed JSON.
}

// FromLabelMe parses all .json label files in labelsDir, flattens their
// polygon shapes and resolves each file to its image by filename stem. Only
// shapes with shape_type "polygon" are consumed; shapes with fewer than 3
// points are discarded as degenerate. Labels pass through the normalizer.
func FromLabelMe(labelsDir string, images *ExtractionResult, labels LabelMap) (
	[]AnnotatedImage, LabelMeStats, error) {

	var stats LabelMeStats

	labelFiles, err := filesByExtInDir(labelsDir, ".json")
	if err != nil {
		return nil, stats, err
	}
	stats.LabelFiles = len(labelFiles)
	log.Printf("Parsing LabelMe labels for %d files", len(labelFiles))

	data := make([]AnnotatedImage, 0, len(labelFiles))
	for _, path := range labelFiles {
		enc, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Error while parsing, skipping %q: %v", path, err)
			stats.ParseErrors++
			continue
		}

		var doc labelMeFile
		if err := json.Unmarshal(enc, &doc); err != nil {
			log.Printf("Invalid JSON, skipping %q: %v", path, err)
			stats.ParseErrors++
			continue
		}

		var shapes []labelMeShape
		for _, shape := range doc.Shapes {
			if shape.ShapeType != "polygon" {
				continue
			}
			if len(shape.Points) < 3 {
				stats.Degenerate++
				continue
			}
			shapes = append(shapes, shape)
		}

		// A document with no usable polygons is the negative case.
		if len(shapes) == 0 {
			stats.SkippedEmpty++
			continue
		}

		_, stem, _, err := splitPath(path)
		if err != nil {
			log.Print(err)
			continue
		}
		img, found := images.resolveImage(stem)
		if !found {
			log.Printf("No corresponding image file, skipping %q", path)
			stats.SkippedNoImage++
			continue
		}

		regions := make([]Region, 0, len(shapes))
		for _, shape := range shapes {
			points := make([]float64, 0, 2*len(shape.Points))
			for _, p := range shape.Points {
				if len(p) >= 2 {
					points = append(points, p[0], p[1])
				}
			}
			if len(points) < 6 {
				stats.Degenerate++
				continue
			}

			regions = append(regions, Region{
				Label:  labels.Normalize(shape.Label),
				Points: points,
			})
			stats.Polygons++
		}
		if len(regions) == 0 {
			stats.SkippedEmpty++
			continue
		}

		data = append(data, AnnotatedImage{
			ImageID:  img.Record.ID,
			FileName: img.Record.FileName,
			Regions:  regions,
		})
		stats.Processed++
	}

	return data, stats, nil
}
