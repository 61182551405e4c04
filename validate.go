package sacoprep

// SA-Co schema validation. Validation is non-mutating and purely advisory:
// it reports a verdict plus the complete itemized list of violations and
// never repairs the data.

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
)

// maxListedIDs bounds the number of offending ids printed for a single
// referential error.
const maxListedIDs = 10

// ValidationResult is the verdict of one validation pass.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidateFile reads the file at path and validates it as an SA-Co document.
func ValidateFile(path string) (ValidationResult, error) {
	enc, err := os.ReadFile(path)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("cannot read file %q: %v", path, err)
	}
	return ValidateJSON(enc), nil
}

// ValidateJSON validates raw JSON against the SA-Co schema. The document is
// inspected in its generic decoded form so that type violations (a string
// id, a fractional width) are reportable rather than lost to struct
// decoding.
func ValidateJSON(data []byte) ValidationResult {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return ValidationResult{Errors: []string{fmt.Sprintf("invalid JSON: %v", err)}}
	}
	return ValidateDocument(doc)
}

// ValidateDocument validates a generically decoded SA-Co document.
func ValidateDocument(doc interface{}) ValidationResult {
	var errs []string

	root, ok := doc.(map[string]interface{})
	if !ok {
		return ValidationResult{Errors: []string{"root element must be an object"}}
	}

	for _, key := range []string{"images", "annotations", "categories"} {
		if _, ok := root[key]; !ok {
			errs = append(errs, fmt.Sprintf("missing required top-level key %q", key))
		}
	}

	imageIDs := make(map[float64]bool)

	if images, ok := root["images"].([]interface{}); ok {
		seen := make(map[float64]bool, len(images))
		for idx, v := range images {
			img, ok := v.(map[string]interface{})
			if !ok {
				errs = append(errs, fmt.Sprintf("image %d: must be an object", idx))
				continue
			}
			errs = append(errs, validateImage(img, idx)...)

			if id, ok := img["id"]; ok && isInt(id) {
				f := id.(float64)
				if seen[f] {
					errs = append(errs, fmt.Sprintf("image %d: duplicate image id %d", idx, int(f)))
				}
				seen[f] = true
				imageIDs[f] = true
			}
		}
	} else if _, present := root["images"]; present {
		errs = append(errs, "\"images\" must be an array")
	}

	if annotations, ok := root["annotations"].([]interface{}); ok {
		seen := make(map[float64]bool, len(annotations))
		var unresolved []int
		for idx, v := range annotations {
			ann, ok := v.(map[string]interface{})
			if !ok {
				errs = append(errs, fmt.Sprintf("annotation %d: must be an object", idx))
				continue
			}
			errs = append(errs, validateAnnotation(ann, idx)...)

			if id, ok := ann["id"]; ok && isInt(id) {
				f := id.(float64)
				if seen[f] {
					errs = append(errs, fmt.Sprintf("annotation %d: duplicate annotation id %d", idx, int(f)))
				}
				seen[f] = true
			}
			if imgID, ok := ann["image_id"]; ok && isInt(imgID) {
				if f := imgID.(float64); !imageIDs[f] {
					unresolved = append(unresolved, int(f))
				}
			}
		}
		if len(unresolved) > 0 {
			errs = append(errs, unresolvedRefError(unresolved))
		}
	} else if _, present := root["annotations"]; present {
		errs = append(errs, "\"annotations\" must be an array")
	}

	if categories, ok := root["categories"].([]interface{}); ok {
		for idx, v := range categories {
			cat, ok := v.(map[string]interface{})
			if !ok {
				errs = append(errs, fmt.Sprintf("category %d: must be an object", idx))
				continue
			}
			if id, ok := cat["id"]; !ok {
				errs = append(errs, fmt.Sprintf("category %d: missing required field \"id\"", idx))
			} else if !isInt(id) {
				errs = append(errs, fmt.Sprintf("category %d: \"id\" must be an integer", idx))
			}
			if name, ok := cat["name"]; !ok {
				errs = append(errs, fmt.Sprintf("category %d: missing required field \"name\"", idx))
			} else if _, ok := name.(string); !ok {
				errs = append(errs, fmt.Sprintf("category %d: \"name\" must be a string", idx))
			}
		}
	} else if _, present := root["categories"]; present {
		errs = append(errs, "\"categories\" must be an array")
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// validateImage checks the required fields and types of one image entry.
func validateImage(img map[string]interface{}, idx int) []string {
	var errs []string

	required := []string{"id", "file_name", "text_input", "height", "width", "is_instance_exhaustive"}
	for _, field := range required {
		if _, ok := img[field]; !ok {
			errs = append(errs, fmt.Sprintf("image %d: missing required field %q", idx, field))
		}
	}

	if v, ok := img["id"]; ok && !isInt(v) {
		errs = append(errs, fmt.Sprintf("image %d: \"id\" must be an integer", idx))
	}
	if v, ok := img["file_name"]; ok {
		if _, ok := v.(string); !ok {
			errs = append(errs, fmt.Sprintf("image %d: \"file_name\" must be a string", idx))
		}
	}
	if v, ok := img["text_input"]; ok {
		if _, ok := v.(string); !ok {
			errs = append(errs, fmt.Sprintf("image %d: \"text_input\" must be a string", idx))
		}
	}
	for _, field := range []string{"height", "width"} {
		v, ok := img[field]
		if !ok {
			continue
		}
		if !isInt(v) {
			errs = append(errs, fmt.Sprintf("image %d: %q must be an integer", idx, field))
		} else if v.(float64) <= 0 {
			errs = append(errs, fmt.Sprintf("image %d: %q must be positive, got %v", idx, field, v))
		}
	}
	if v, ok := img["is_instance_exhaustive"]; ok && !isBoolOr01(v) {
		errs = append(errs, fmt.Sprintf(
			"image %d: \"is_instance_exhaustive\" must be a boolean or 0/1", idx))
	}

	return errs
}

// validateAnnotation checks the required fields and types of one annotation
// entry.
func validateAnnotation(ann map[string]interface{}, idx int) []string {
	var errs []string

	for _, field := range []string{"id", "image_id", "category_id"} {
		v, ok := ann[field]
		if !ok {
			errs = append(errs, fmt.Sprintf("annotation %d: missing required field %q", idx, field))
			continue
		}
		if !isInt(v) {
			errs = append(errs, fmt.Sprintf("annotation %d: %q must be an integer", idx, field))
		}
	}

	if seg, ok := ann["segmentation"]; ok {
		switch seg := seg.(type) {
		case []interface{}:
			// Polygon form: a list of flat coordinate lists.
			for i, poly := range seg {
				if _, ok := poly.([]interface{}); !ok {
					errs = append(errs, fmt.Sprintf(
						"annotation %d: \"segmentation\" entry %d must be a coordinate list", idx, i))
				}
			}
		case map[string]interface{}:
			// RLE form requires size and counts.
			if _, ok := seg["size"]; !ok {
				errs = append(errs, fmt.Sprintf(
					"annotation %d: RLE \"segmentation\" missing \"size\"", idx))
			}
			if _, ok := seg["counts"]; !ok {
				errs = append(errs, fmt.Sprintf(
					"annotation %d: RLE \"segmentation\" missing \"counts\"", idx))
			}
		default:
			errs = append(errs, fmt.Sprintf(
				"annotation %d: \"segmentation\" must be a polygon list or an RLE object", idx))
		}
	}

	if v, ok := ann["bbox"]; ok {
		bbox, isList := v.([]interface{})
		if !isList {
			errs = append(errs, fmt.Sprintf("annotation %d: \"bbox\" must be an array", idx))
		} else if len(bbox) != 4 {
			errs = append(errs, fmt.Sprintf(
				"annotation %d: \"bbox\" must have exactly 4 elements, got %d", idx, len(bbox)))
		} else {
			for _, e := range bbox {
				if _, ok := e.(float64); !ok {
					errs = append(errs, fmt.Sprintf(
						"annotation %d: \"bbox\" elements must be numbers", idx))
					break
				}
			}
		}
	}

	if v, ok := ann["iscrowd"]; ok && !isBoolOr01(v) {
		errs = append(errs, fmt.Sprintf("annotation %d: \"iscrowd\" must be 0 or 1", idx))
	}

	return errs
}

// unresolvedRefError formats the referential error for annotations pointing
// at absent image ids, truncating very long id lists.
func unresolvedRefError(ids []int) string {
	uniq := make(map[int]bool, len(ids))
	for _, id := range ids {
		uniq[id] = true
	}
	sorted := make([]int, 0, len(uniq))
	for id := range uniq {
		sorted = append(sorted, id)
	}
	sort.Ints(sorted)

	listed := sorted
	var suffix string
	if len(sorted) > maxListedIDs {
		listed = sorted[:maxListedIDs]
		suffix = fmt.Sprintf(" and %d more", len(sorted)-maxListedIDs)
	}

	parts := make([]string, len(listed))
	for i, id := range listed {
		parts[i] = fmt.Sprint(id)
	}

	return fmt.Sprintf("annotations reference %d unresolved image ids: %s%s",
		len(sorted), strings.Join(parts, ", "), suffix)
}

// isInt reports whether the generically decoded value is an integral JSON
// number.
func isInt(v interface{}) bool {
	f, ok := v.(float64)
	return ok && f == math.Trunc(f)
}

// isBoolOr01 reports whether the value is a JSON boolean or the integer 0
// or 1.
func isBoolOr01(v interface{}) bool {
	if _, ok := v.(bool); ok {
		return true
	}
	f, ok := v.(float64)
	return ok && (f == 0 || f == 1)
}
