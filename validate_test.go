package sacoprep

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `{
	"images": [
		{"id": 1, "file_name": "chicken/a.jpg", "height": 100, "width": 100,
		 "text_input": "chicken", "is_instance_exhaustive": true},
		{"id": 2, "file_name": "not_chicken/b.jpg", "height": 50, "width": 80,
		 "text_input": "chicken", "is_instance_exhaustive": 1}
	],
	"annotations": [
		{"id": 1, "image_id": 1, "category_id": 1,
		 "segmentation": [[30, 30, 70, 30, 70, 70, 30, 70]],
		 "bbox": [30, 30, 40, 40], "area": 1600.0, "iscrowd": 0}
	],
	"categories": [{"id": 1, "name": "chicken"}]
}`

func TestValidateValidDocument(t *testing.T) {
	result := ValidateJSON([]byte(validDoc))
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateMissingTopLevelKeys(t *testing.T) {
	result := ValidateJSON([]byte(`{"images": []}`))
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, `missing required top-level key "annotations"`)
	assert.Contains(t, result.Errors, `missing required top-level key "categories"`)
}

func TestValidateMissingExhaustivenessFlag(t *testing.T) {
	doc := `{
		"images": [
			{"id": 1, "file_name": "a.jpg", "height": 10, "width": 10,
			 "text_input": "chicken", "is_instance_exhaustive": true},
			{"id": 2, "file_name": "b.jpg", "height": 10, "width": 10,
			 "text_input": "chicken"}
		],
		"annotations": [],
		"categories": [{"id": 1, "name": "chicken"}]
	}`

	result := ValidateJSON([]byte(doc))
	assert.False(t, result.Valid)

	// The error names both the image index and the field.
	require.Len(t, result.Errors, 1)
	assert.Equal(t, `image 1: missing required field "is_instance_exhaustive"`, result.Errors[0])
}

func TestValidateTypeErrors(t *testing.T) {
	doc := `{
		"images": [
			{"id": "not-an-int", "file_name": 5, "height": 0, "width": 10.5,
			 "text_input": "chicken", "is_instance_exhaustive": 2}
		],
		"annotations": [],
		"categories": []
	}`

	result := ValidateJSON([]byte(doc))
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, `image 0: "id" must be an integer`)
	assert.Contains(t, result.Errors, `image 0: "file_name" must be a string`)
	assert.Contains(t, result.Errors, `image 0: "height" must be positive, got 0`)
	assert.Contains(t, result.Errors, `image 0: "width" must be an integer`)
	assert.Contains(t, result.Errors, `image 0: "is_instance_exhaustive" must be a boolean or 0/1`)
}

func TestValidateDuplicateImageIDs(t *testing.T) {
	doc := `{
		"images": [
			{"id": 42, "file_name": "a.jpg", "height": 10, "width": 10,
			 "text_input": "chicken", "is_instance_exhaustive": true},
			{"id": 42, "file_name": "b.jpg", "height": 10, "width": 10,
			 "text_input": "chicken", "is_instance_exhaustive": true}
		],
		"annotations": [],
		"categories": [{"id": 1, "name": "chicken"}]
	}`

	result := ValidateJSON([]byte(doc))
	assert.False(t, result.Valid)

	// Exactly one error, identifying id 42 at the second occurrence.
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "image 1: duplicate image id 42", result.Errors[0])
}

func TestValidateAnnotationChecks(t *testing.T) {
	doc := `{
		"images": [
			{"id": 1, "file_name": "a.jpg", "height": 10, "width": 10,
			 "text_input": "chicken", "is_instance_exhaustive": true}
		],
		"annotations": [
			{"id": 1, "image_id": 1, "category_id": 1,
			 "segmentation": {"size": [10, 10], "counts": "abc"},
			 "bbox": [1, 2, 3], "iscrowd": 1},
			{"id": 1, "image_id": 7, "category_id": 1, "segmentation": "nope"},
			{"id": 2, "category_id": 1}
		],
		"categories": [{"id": 1, "name": "chicken"}]
	}`

	result := ValidateJSON([]byte(doc))
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors,
		`annotation 0: "bbox" must have exactly 4 elements, got 3`)
	assert.Contains(t, result.Errors,
		`annotation 1: "segmentation" must be a polygon list or an RLE object`)
	assert.Contains(t, result.Errors, "annotation 1: duplicate annotation id 1")
	assert.Contains(t, result.Errors, `annotation 2: missing required field "image_id"`)
	assert.Contains(t, result.Errors,
		"annotations reference 1 unresolved image ids: 7")

	// The RLE segmentation form with size and counts is accepted.
	for _, e := range result.Errors {
		assert.NotContains(t, e, "annotation 0: RLE")
	}
}

func TestValidateUnresolvedRefListTruncation(t *testing.T) {
	type ann struct {
		ID         int `json:"id"`
		ImageID    int `json:"image_id"`
		CategoryID int `json:"category_id"`
	}
	doc := map[string]interface{}{
		"images":     []interface{}{},
		"categories": []interface{}{},
	}
	anns := make([]ann, 15)
	for i := range anns {
		anns[i] = ann{ID: i + 1, ImageID: 100 + i, CategoryID: 1}
	}
	doc["annotations"] = anns

	enc, err := json.Marshal(doc)
	require.NoError(t, err)

	result := ValidateJSON(enc)
	assert.False(t, result.Valid)

	var refErr string
	for _, e := range result.Errors {
		if strings.Contains(e, "unresolved image ids") {
			refErr = e
		}
	}
	require.NotEmpty(t, refErr)
	assert.Contains(t, refErr, "annotations reference 15 unresolved image ids")
	assert.Contains(t, refErr, "and 5 more")
	assert.NotContains(t, refErr, "114", "ids beyond the truncation point are not listed")
}

func TestValidateFileRoundTrip(t *testing.T) {
	ds := splitFixture(3, 2)
	ds.Info = &DatasetInfo{Description: "test", Version: "1.0", Year: 2025}

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, WriteDataset(path, ds))

	result, err := ValidateFile(path)
	require.NoError(t, err)
	assert.True(t, result.Valid, "errors: %v", result.Errors)

	back, err := ReadDataset(path)
	require.NoError(t, err)
	assert.Equal(t, ds, back)

	_, err = ValidateFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestValidateMalformedJSON(t *testing.T) {
	result := ValidateJSON([]byte("{not json"))
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "invalid JSON")

	result = ValidateJSON([]byte(`[1, 2, 3]`))
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "root element must be an object")
}

func TestValidateConsolidatedOutput(t *testing.T) {
	// The consolidator's output passes validation end to end.
	images := []ExtractedImage{
		testImage(1, "chicken/a.jpg", 100, 100),
		testImage(2, "not_chicken/b.jpg", 100, 100),
	}
	annotated := []AnnotatedImage{
		{ImageID: 1, FileName: "chicken/a.jpg", Regions: []Region{
			{Label: "chicken", Points: []float64{30, 30, 70, 30, 70, 70, 30, 70}},
		}},
	}

	ds, _ := Consolidate(images, annotated, CategoryRecord{ID: 1, Name: "chicken"})
	enc, err := json.Marshal(ds)
	require.NoError(t, err)

	result := ValidateJSON(enc)
	assert.True(t, result.Valid, "errors: %v", result.Errors)
}
