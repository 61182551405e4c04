package sacoprep

// Stratified train/validation splitting.

import (
	"fmt"
	"math/rand"
	"sort"
)

// SplitReport summarizes a split and itemizes integrity violations. A
// violation does not void the returned partition, but callers are expected
// to treat it as blocking for training.
type SplitReport struct {
	TrainPositives int
	TrainNegatives int
	ValPositives   int
	ValNegatives   int
	Violations     []string
}

// SplitDataset partitions ds into train and validation datasets at
// trainRatio. Positive images (at least one annotation) and negative images
// (zero annotations) are shuffled and split independently before being
// recombined, which guarantees negative representation in both outputs
// whenever at least 2 negative images exist and the ratio is not extreme.
//
// The split is deterministic for a fixed (dataset, ratio, seed): strata are
// sorted by image id before the seeded shuffle, so input order does not
// matter. Annotations follow their image and are never reassigned
// independently. The two outputs are value copies sharing no mutable state
// with ds or each other.
//
// A stratum with exactly 1 member goes to the train side. A dataset with no
// images at all fails rather than producing two empty partitions.
func SplitDataset(ds *Dataset, trainRatio float64, seed int64) (
	train, val *Dataset, report SplitReport, err error) {

	if trainRatio <= 0 || trainRatio >= 1 {
		return nil, nil, report, fmt.Errorf("train ratio %v outside (0,1)", trainRatio)
	}

	counts := ds.annotationCounts()
	var positives, negatives []int
	for _, img := range ds.Images {
		if counts[img.ID] > 0 {
			positives = append(positives, img.ID)
		} else {
			negatives = append(negatives, img.ID)
		}
	}
	if len(positives) == 0 && len(negatives) == 0 {
		return nil, nil, report, fmt.Errorf("dataset has no images to split")
	}

	sort.Ints(positives)
	sort.Ints(negatives)

	rng := rand.New(rand.NewSource(seed))
	posTrain, posVal := splitStratum(positives, trainRatio, rng)
	negTrain, negVal := splitStratum(negatives, trainRatio, rng)

	report.TrainPositives = len(posTrain)
	report.TrainNegatives = len(negTrain)
	report.ValPositives = len(posVal)
	report.ValNegatives = len(negVal)

	if len(negatives) >= 2 {
		if len(negTrain) == 0 {
			report.Violations = append(report.Violations, fmt.Sprintf(
				"train split lost negative representation: 0 of %d negatives assigned",
				len(negatives)))
		}
		if len(negVal) == 0 {
			report.Violations = append(report.Violations, fmt.Sprintf(
				"val split lost negative representation: 0 of %d negatives assigned",
				len(negatives)))
		}
	}

	trainIDs := idSet(posTrain, negTrain)
	valIDs := idSet(posVal, negVal)

	train = subset(ds, trainIDs, "train")
	val = subset(ds, valIDs, "val")

	return train, val, report, nil
}

// splitStratum shuffles the ids with rng and splits them at
// floor(len*ratio). A single-member stratum cannot be fractionally split and
// is assigned wholly to the train side; an empty stratum yields two empty
// sides.
func splitStratum(ids []int, ratio float64, rng *rand.Rand) (train, val []int) {
	switch len(ids) {
	case 0:
		return nil, nil
	case 1:
		return ids, nil
	}

	shuffled := make([]int, len(ids))
	copy(shuffled, ids)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	k := int(float64(len(shuffled)) * ratio)
	return shuffled[:k], shuffled[k:]
}

// idSet collects id slices into one membership set.
func idSet(slices ...[]int) map[int]bool {
	set := make(map[int]bool)
	for _, ids := range slices {
		for _, id := range ids {
			set[id] = true
		}
	}
	return set
}

// subset copies the images whose ids are in keep, and the annotations that
// follow them, into a new dataset. Record order follows ds, so the result is
// deterministic for a fixed id set.
func subset(ds *Dataset, keep map[int]bool, name string) *Dataset {
	out := &Dataset{
		Images:      make([]ImageRecord, 0, len(keep)),
		Annotations: getAnnotationsForImages(ds.Annotations, keep),
		Categories:  append([]CategoryRecord(nil), ds.Categories...),
	}
	if ds.Info != nil {
		info := *ds.Info
		info.Description = fmt.Sprintf("%s (%s split)", info.Description, name)
		out.Info = &info
	}

	for _, img := range ds.Images {
		if keep[img.ID] {
			out.Images = append(out.Images, img)
		}
	}

	return out
}

// getAnnotationsForImages filters annotations by the image-id set. An
// annotation is never reassigned; it appears in exactly the partition that
// owns its image.
func getAnnotationsForImages(annotations []AnnotationRecord, imageIDs map[int]bool) []AnnotationRecord {
	out := make([]AnnotationRecord, 0, len(annotations))
	for _, a := range annotations {
		if imageIDs[a.ImageID] {
			out = append(out, a)
		}
	}
	return out
}
