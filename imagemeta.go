package sacoprep

// Image metadata extraction: dimension probing and stable id assignment.

import (
	"fmt"
	"hash/fnv"
	"image"
	"log"
	"os"
	"path/filepath"

	// Decoders for image.DecodeConfig. Only headers are read; pixel data is
	// never decoded by this pipeline.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ExtractedImage is one image record together with its on-disk location and
// class-directory placement.
type ExtractedImage struct {
	Record   ImageRecord
	Path     string // Absolute or cwd-relative path on disk.
	Negative bool   // The image lies under the negative-class directory.
}

// ExtractionResult is the output of one extraction pass.
type ExtractionResult struct {
	Images []ExtractedImage
	Errors []string // Per-file extraction errors; the pass never aborts on them.

	byStem map[string]int // Filename stem to index into Images; first seen wins.
}

// resolveImage returns the extracted image whose filename stem matches.
// Stems registered from the class-partitioned subdirectories take precedence
// over the flat images root, following the extraction scan order.
func (r *ExtractionResult) resolveImage(stem string) (*ExtractedImage, bool) {
	idx, ok := r.byStem[stem]
	if !ok {
		return nil, false
	}
	return &r.Images[idx], true
}

// idRegistry tracks assigned image ids for collision detection.
type idRegistry map[int]string

// assign derives the id for fileName and registers it. Two distinct file
// names hashing to the same id is a hard error; re-registering the same name
// returns the same id.
func (r idRegistry) assign(fileName string) (int, error) {
	id := imageID(fileName)
	if prev, ok := r[id]; ok && prev != fileName {
		return 0, fmt.Errorf("image id collision: %q and %q both map to %d", prev, fileName, id)
	}
	r[id] = fileName
	return id, nil
}

// imageID derives a stable 31-bit identifier from the image file name using
// FNV-1a. Stability across runs on an unchanged file tree is a correctness
// requirement; collisions are caught by idRegistry.assign.
func imageID(fileName string) int {
	h := fnv.New32a()
	h.Write([]byte(fileName))
	return int(h.Sum32() & 0x7fffffff)
}

// ExtractImages scans the positive and negative class directories and then
// the flat images root, probes the dimensions of every image file and emits
// one ImageRecord per readable image with the fixed class prompt and
// is_instance_exhaustive set.
//
// A file that cannot be decoded is recorded in Errors and excluded from the
// output; it does not abort the pass. An id collision between distinct file
// names does abort, as the ids would no longer be unique.
func ExtractImages(cfg Config) (*ExtractionResult, error) {
	result := &ExtractionResult{byStem: make(map[string]int)}
	ids := make(idRegistry)

	scans := []struct {
		dir      string
		negative bool
	}{
		{cfg.PositivePath(), false},
		{cfg.NegativePath(), true},
		{cfg.ImagesPath(), false},
	}

	for _, scan := range scans {
		files, err := imageFilesInDir(scan.dir)
		if err != nil {
			return nil, err
		}

		for _, path := range files {
			name := filepath.Base(path)
			stem := name[0 : len(name)-len(filepath.Ext(name))]
			if _, seen := result.byStem[stem]; seen {
				continue
			}

			config, _, err := decodeImageConfig(path)
			if err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("error processing %q: %v", name, err))
				continue
			}

			id, err := ids.assign(name)
			if err != nil {
				return nil, err
			}

			fileName, err := filepath.Rel(cfg.DataRoot, path)
			if err != nil {
				fileName = name
			}

			result.byStem[stem] = len(result.Images)
			result.Images = append(result.Images, ExtractedImage{
				Record: ImageRecord{
					ID:                   id,
					FileName:             filepath.ToSlash(fileName),
					Height:               config.Height,
					Width:                config.Width,
					TextInput:            cfg.ClassPrompt,
					IsInstanceExhaustive: true,
				},
				Path:     path,
				Negative: scan.negative,
			})
		}
	}

	if len(result.Errors) > 0 {
		log.Printf("Extraction finished with %d per-file errors", len(result.Errors))
	}

	return result, nil
}

// decodeImageConfig opens the file at path and returns the results of
// image.DecodeConfig.
func decodeImageConfig(path string) (config image.Config, format string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer file.Close()

	return image.DecodeConfig(file)
}
