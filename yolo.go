package sacoprep

// YOLO label format specific functionality.

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
)

// ClassNames resolves YOLO class ids to names. The id is the line index in a
// classes.txt file.
type ClassNames []string

// Name returns the class name for id, or fallback when the id is unknown.
func (c ClassNames) Name(id int, fallback string) string {
	if id >= 0 && id < len(c) {
		return c[id]
	}
	return fallback
}

// LoadClassNames reads a YOLO classes.txt file, one class name per line. A
// missing file is not an error; single-class corpora commonly have none.
func LoadClassNames(path string) (ClassNames, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, nil
	}

	names := make(ClassNames, 0, len(lines))
	for _, line := range lines {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}

	return names, nil
}

// YOLOStats counts the outcomes of one YOLO parsing pass.
type YOLOStats struct {
	LabelFiles     int // .txt files found.
	Processed      int // Files converted into at least one polygon.
	SkippedEmpty   int // Files with no parseable boxes (the negative case).
	SkippedNoImage int // Files with no matching image by stem.
	Boxes          int // Boxes converted to polygons.
	LineErrors     int // Malformed or out-of-range lines skipped.
}

// FromYOLO parses all .txt label files in labelsDir, converts their
// normalized boxes into absolute 4-point polygons and resolves each file to
// its image by filename stem. Unresolvable or malformed inputs are skipped
// with a logged warning; only the directory scan itself can fail.
func FromYOLO(labelsDir string, images *ExtractionResult, classes ClassNames,
	labels LabelMap, classPrompt string) ([]AnnotatedImage, YOLOStats, error) {

	var stats YOLOStats

	labelFiles, err := filesByExtInDir(labelsDir, ".txt")
	if err != nil {
		return nil, stats, err
	}
	stats.LabelFiles = len(labelFiles)
	log.Printf("Parsing YOLO labels for %d files", len(labelFiles))

	data := make([]AnnotatedImage, 0, len(labelFiles))
	for _, path := range labelFiles {
		lines, err := readLines(path)
		if err != nil {
			log.Printf("Error while parsing, skipping %q: %v", path, err)
			continue
		}

		type yoloBox struct {
			classID int
			box     [4]float64
		}
		var boxes []yoloBox
		for i, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}

			classID, box, err := parseYOLOLine(line)
			if err != nil {
				log.Printf("Skipping line %d of %q: %v", i+1, path, err)
				stats.LineErrors++
				continue
			}
			boxes = append(boxes, yoloBox{classID: classID, box: box})
		}

		// An empty or all-blank file yields zero polygons. That is the
		// "no annotation" negative case, not an error.
		if len(boxes) == 0 {
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

		regions := make([]Region, 0, len(boxes))
		for _, b := range boxes {
			regions = append(regions, Region{
				Label:  labels.Normalize(classes.Name(b.classID, classPrompt)),
				Points: yoloPolygon(b.box, img.Record.Width, img.Record.Height),
			})
			stats.Boxes++
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

// parseYOLOLine parses one "class_id x_center y_center width height" line.
// The four geometric values must be normalized to [0,1].
func parseYOLOLine(line string) (classID int, box [4]float64, err error) {
	tokens := strings.Fields(line)
	if len(tokens) != 5 {
		return 0, box, fmt.Errorf("expected 5 values, got %d", len(tokens))
	}

	classID, err = strconv.Atoi(tokens[0])
	if err != nil {
		return 0, box, fmt.Errorf("invalid class id %q: %v", tokens[0], err)
	}

	for i := 1; i < 5; i++ {
		v, err := strconv.ParseFloat(tokens[i], 64)
		if err != nil {
			return 0, box, fmt.Errorf("invalid numeric value %q: %v", tokens[i], err)
		}
		if v < 0 || v > 1 {
			return 0, box, fmt.Errorf("value %v outside [0,1] range", v)
		}
		box[i-1] = v
	}

	return classID, box, nil
}

// yoloPolygon converts a normalized YOLO box (x_center, y_center, width,
// height) to an absolute rectangular polygon on a width x height image,
// flattened in the fixed corner order top-left, top-right, bottom-right,
// bottom-left: [x1,y1, x2,y1, x2,y2, x1,y2]. Corners are clamped to the
// image bounds.
func yoloPolygon(box [4]float64, width, height int) []float64 {
	w := float64(width)
	h := float64(height)

	xCenter := box[0] * w
	yCenter := box[1] * h
	boxW := box[2] * w
	boxH := box[3] * h

	clamp := func(v, hi float64) float64 {
		return math.Max(0, math.Min(v, hi))
	}
	xMin := clamp(xCenter-boxW/2, w)
	yMin := clamp(yCenter-boxH/2, h)
	xMax := clamp(xCenter+boxW/2, w)
	yMax := clamp(yCenter+boxH/2, h)

	return []float64{xMin, yMin, xMax, yMin, xMax, yMax, xMin, yMax}
}
