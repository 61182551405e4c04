package sacoprep

// The SA-Co annotation schema and the intermediate representation shared by
// the format adapters.

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// ImageRecord is one image entry in the SA-Co schema.
//
// TextInput carries the fixed class prompt for every image, positive or
// negative. IsInstanceExhaustive asserts that every instance of the target
// class present in the image has been annotated, which licenses the
// downstream loss to treat unannotated pixels as background.
type ImageRecord struct {
	ID                   int    `json:"id"`
	FileName             string `json:"file_name"`
	Height               int    `json:"height"`
	Width                int    `json:"width"`
	TextInput            string `json:"text_input"`
	IsInstanceExhaustive bool   `json:"is_instance_exhaustive"`
}

// AnnotationRecord is one object annotation in the SA-Co schema.
//
// Segmentation holds one or more polygons, each a flat list of x,y pairs.
// BBox is the enclosing axis-aligned box as [x_min, y_min, width, height].
type AnnotationRecord struct {
	ID           int         `json:"id"`
	ImageID      int         `json:"image_id"`
	CategoryID   int         `json:"category_id"`
	Segmentation [][]float64 `json:"segmentation"`
	BBox         [4]float64  `json:"bbox"`
	Area         float64     `json:"area"`
	IsCrowd      int         `json:"iscrowd"`
}

// CategoryRecord names an object category. This dataset carries a single
// entry for the positive class.
type CategoryRecord struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// DatasetInfo is the optional descriptive header of a dataset file.
type DatasetInfo struct {
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
	Year        int    `json:"year,omitempty"`
}

// Dataset is the unit of input/output for the consolidator, splitter and
// validator.
type Dataset struct {
	Info        *DatasetInfo       `json:"info,omitempty"`
	Images      []ImageRecord      `json:"images"`
	Annotations []AnnotationRecord `json:"annotations"`
	Categories  []CategoryRecord   `json:"categories"`
}

// annotationCounts maps every image id present in ds.Images to the number of
// annotations referencing it. Images without annotations map to zero.
func (ds *Dataset) annotationCounts() map[int]int {
	counts := make(map[int]int, len(ds.Images))
	for _, img := range ds.Images {
		counts[img.ID] = 0
	}
	for _, a := range ds.Annotations {
		if _, ok := counts[a.ImageID]; ok {
			counts[a.ImageID]++
		}
	}
	return counts
}

// Region is a single labelled polygon resolved from a source annotation file.
// Points is a flat list of x,y pairs with at least 3 points.
type Region struct {
	Label  string
	Points []float64
}

// AnnotatedImage ties the regions resolved from one label file to the
// extracted image they belong to. It is the adapters' common output.
type AnnotatedImage struct {
	ImageID  int
	FileName string
	Regions  []Region
}

// polygonBBox returns the [x_min, y_min, width, height] box enclosing the
// flat polygon points.
func polygonBBox(points []float64) [4]float64 {
	if len(points) < 2 {
		return [4]float64{}
	}

	minX, minY := points[0], points[1]
	maxX, maxY := points[0], points[1]
	for i := 2; i+1 < len(points); i += 2 {
		minX = math.Min(minX, points[i])
		maxX = math.Max(maxX, points[i])
		minY = math.Min(minY, points[i+1])
		maxY = math.Max(maxY, points[i+1])
	}

	return [4]float64{minX, minY, maxX - minX, maxY - minY}
}

// polygonArea returns the absolute area of the flat polygon points, computed
// with the shoelace formula.
func polygonArea(points []float64) float64 {
	n := len(points) / 2
	if n < 3 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += points[2*i]*points[2*j+1] - points[2*j]*points[2*i+1]
	}

	return math.Abs(sum) / 2
}

// WriteDataset writes the dataset as indented JSON to outFile.
func WriteDataset(outFile string, ds *Dataset) error {
	enc, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(outFile, enc, 0644); err != nil {
		return fmt.Errorf("cannot write file %q: %v", outFile, err)
	}
	return nil
}

// ReadDataset reads and parses a dataset JSON file.
func ReadDataset(path string) (*Dataset, error) {
	enc, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var ds Dataset
	if err := json.Unmarshal(enc, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse dataset from %q: %v", path, err)
	}

	return &ds, nil
}
