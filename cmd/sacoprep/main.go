// Consolidates heterogeneous annotation sources (YOLO boxes, LabelMe
// polygons, directory-based negatives) into the SA-Co schema and splits the
// corpus into train/validation sets with guaranteed negative representation.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/farmsight/sacoprep"
)

var (
	configPath string // Optional YAML config overlay.
	dataRoot   string // Override for the data root directory.

	trainOutPath string // Output path for the train dataset JSON.
	valOutPath   string // Output path for the validation dataset JSON.
	trainRatio   float64
	seed         int64

	tfRecordPath     string // Optional TFRecord output prefix.
	tfRecordLabelMap string // Label map path for the TFRecord export.
	numShardFiles    int    // The number of shard files to create.

	validateOnlyPath string // Validate an existing dataset file and exit.
)

func init() {
	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage of %s:\n", filepath.Base(os.Args[0]))
		_, _ = fmt.Fprintln(os.Stderr, "  build datasets:\t-train-out <file> -val-out <file> [-config <file>]")
		_, _ = fmt.Fprintln(os.Stderr, "  validate a file:\t-validate <file>")
		_, _ = fmt.Fprintln(os.Stderr, "  tfrecord export:\t-tfrecord <prefix> -tfrecord-label-map <file> [-num-shards]")
		_, _ = fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
	}

	flag.StringVar(&configPath, "config", "",
		"The `path` to an optional YAML configuration file")
	flag.StringVar(&dataRoot, "data-root", "",
		"The `path` to the data root directory (overrides the config)")
	flag.StringVar(&trainOutPath, "train-out", "",
		"The output `path` for the train dataset JSON")
	flag.StringVar(&valOutPath, "val-out", "",
		"The output `path` for the validation dataset JSON")
	flag.Float64Var(&trainRatio, "train-ratio", 0,
		"The train `fraction` in (0,1) (overrides the config)")
	flag.Int64Var(&seed, "seed", -1,
		"The split `seed` (overrides the config; reruns with identical inputs reproduce the split)")
	flag.StringVar(&tfRecordPath, "tfrecord", "",
		"The output `prefix` for optional TFRecord export of both splits")
	flag.StringVar(&tfRecordLabelMap, "tfrecord-label-map", "",
		"The TFRecord label map file `path`")
	flag.IntVar(&numShardFiles, "num-shards", 1,
		"The number of shard files to create per TFRecord export")
	flag.StringVar(&validateOnlyPath, "validate", "",
		"Validate the SA-Co JSON file at `path` and exit")
}

func main() {
	flag.Parse()

	if validateOnlyPath != "" {
		os.Exit(runValidate(validateOnlyPath))
	}

	if trainOutPath == "" || valOutPath == "" {
		log.Print("Missing -train-out or -val-out argument")
		flag.Usage()
		os.Exit(1)
	}
	if tfRecordPath != "" && tfRecordLabelMap == "" {
		log.Print("Missing -tfrecord-label-map argument")
		flag.Usage()
		os.Exit(1)
	}

	cfg := sacoprep.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = sacoprep.LoadConfig(configPath); err != nil {
			log.Fatal("Failed to load the configuration: ", err)
		}
	}
	if dataRoot != "" {
		cfg.DataRoot = filepath.Clean(dataRoot)
	}
	if trainRatio != 0 {
		cfg.Split.TrainRatio = trainRatio
	}
	if seed >= 0 {
		cfg.Split.Seed = seed
	}

	// Extract the base image-record set.
	extraction, err := sacoprep.ExtractImages(cfg)
	if err != nil {
		log.Fatal("Image extraction failed: ", err)
	}
	log.Printf("Extracted metadata for %d images (%d unreadable files skipped)",
		len(extraction.Images), len(extraction.Errors))
	for _, e := range extraction.Errors {
		log.Print("  ", e)
	}

	// Run the format adapters.
	classes, err := sacoprep.LoadClassNames(cfg.ClassesPath())
	if err != nil {
		log.Fatal("Failed to read the class names: ", err)
	}
	labels := sacoprep.NewLabelMap(cfg.Synonyms)

	yoloData, yoloStats, err := sacoprep.FromYOLO(cfg.LabelsPath(), extraction, classes,
		labels, cfg.ClassPrompt)
	if err != nil {
		log.Fatal("YOLO parsing failed: ", err)
	}
	log.Printf("YOLO: %d files, %d processed, %d empty, %d without image, %d boxes, %d bad lines",
		yoloStats.LabelFiles, yoloStats.Processed, yoloStats.SkippedEmpty,
		yoloStats.SkippedNoImage, yoloStats.Boxes, yoloStats.LineErrors)

	labelMeData, lmStats, err := sacoprep.FromLabelMe(cfg.LabelsPath(), extraction, labels)
	if err != nil {
		log.Fatal("LabelMe parsing failed: ", err)
	}
	log.Printf("LabelMe: %d files, %d processed, %d empty, %d without image, %d polygons,"+
		" %d degenerate, %d parse errors",
		lmStats.LabelFiles, lmStats.Processed, lmStats.SkippedEmpty, lmStats.SkippedNoImage,
		lmStats.Polygons, lmStats.Degenerate, lmStats.ParseErrors)

	annotated := append(yoloData, labelMeData...)

	// Exclude ambiguous samples before consolidation.
	matcher := sacoprep.NewAmbiguousMatcher(cfg.AmbiguousPatterns)
	images, annotated, exclusions := sacoprep.FilterAmbiguous(extraction.Images, annotated, matcher)
	for _, e := range exclusions {
		log.Printf("Excluded %q for ambiguous labels: %v", e.FileName, e.Labels)
	}

	// Classify negatives after all adapters have run.
	negatives := sacoprep.ClassifyNegatives(images, annotated)
	log.Printf("Classified %d positive and %d negative images (%d by directory,"+
		" %d without annotations)",
		len(negatives.Positives), len(negatives.Negatives),
		negatives.ByDirectory, negatives.ByNoAnnotations)
	for _, c := range negatives.DirConflicts {
		log.Printf("Inconsistent negative %q: %d annotations present, kept as positive;"+
			" correct the file tree", c.FileName, c.Annotations)
	}
	for _, f := range negatives.UnlabeledInPositiveDir {
		log.Printf("Unlabeled image %q outside the negative directory; verify its placement", f)
	}

	// Consolidate and split.
	ds, cStats := sacoprep.Consolidate(images, annotated, cfg.Category)
	ds.Info = &sacoprep.DatasetInfo{
		Description: fmt.Sprintf("%s detection dataset", cfg.Category.Name),
		Version:     "1.0",
		Year:        2025,
	}
	log.Printf("Consolidated %d images and %d annotations (%d duplicates dropped)",
		cStats.Images, cStats.Annotations, cStats.DuplicateImages)

	train, val, report, err := sacoprep.SplitDataset(ds, cfg.Split.TrainRatio, cfg.Split.Seed)
	if err != nil {
		log.Fatal("Failed to split the dataset: ", err)
	}
	log.Printf("Split: train %d images (%d positive, %d negative),"+
		" val %d images (%d positive, %d negative)",
		len(train.Images), report.TrainPositives, report.TrainNegatives,
		len(val.Images), report.ValPositives, report.ValNegatives)
	for _, v := range report.Violations {
		log.Print("Split integrity violation: ", v)
	}

	// Write and validate the artifacts.
	valid := len(report.Violations) == 0
	for _, out := range []struct {
		path string
		ds   *sacoprep.Dataset
	}{{trainOutPath, train}, {valOutPath, val}} {
		if err := sacoprep.WriteDataset(out.path, out.ds); err != nil {
			log.Fatal("Failed to write the dataset: ", err)
		}
		log.Printf("Wrote %d images and %d annotations to %s",
			len(out.ds.Images), len(out.ds.Annotations), out.path)

		result, err := sacoprep.ValidateFile(out.path)
		if err != nil {
			log.Fatal("Validation failed to run: ", err)
		}
		if !result.Valid {
			valid = false
			log.Printf("Schema validation of %q failed with %d errors:", out.path, len(result.Errors))
			for _, e := range result.Errors {
				log.Print("  ", e)
			}
		}
	}

	// Optional TFRecord export.
	if tfRecordPath != "" {
		for _, out := range []struct {
			suffix string
			ds     *sacoprep.Dataset
		}{{"train", train}, {"val", val}} {
			recordPath := fmt.Sprintf("%s-%s.tfrecord", tfRecordPath, out.suffix)
			if err := sacoprep.WriteTFRecord(recordPath, tfRecordLabelMap, cfg.DataRoot,
				out.ds, numShardFiles); err != nil {
				log.Fatal("TFRecord export failed: ", err)
			}
			log.Printf("Wrote TFRecord export to %s", recordPath)
		}
	}

	if !valid {
		os.Exit(1)
	}
}

// runValidate validates a single dataset file and reports every violation.
func runValidate(path string) int {
	result, err := sacoprep.ValidateFile(path)
	if err != nil {
		log.Print(err)
		return 1
	}

	if result.Valid {
		log.Printf("%s: schema valid", path)
		return 0
	}

	log.Printf("%s: schema invalid, %d errors:", path, len(result.Errors))
	for _, e := range result.Errors {
		log.Print("  ", e)
	}
	return 1
}
