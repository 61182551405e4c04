package sacoprep

// TFRecord object detection export for the split datasets.

import (
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/golang/protobuf/proto"
	"github.com/ryszard/tfutils/go/example"
	"github.com/ryszard/tfutils/go/tfrecord"
)

// WriteTFRecord serializes the dataset's images and boxes to one or more
// TFRecord files under recordPath (shard suffixes are added when numShards
// is greater than 1) and writes a prototext label map for the categories to
// labelMapPath.
//
// Image files are resolved relative to dataRoot. An image that cannot be
// read or decoded is logged and skipped; the export continues.
func WriteTFRecord(recordPath, labelMapPath, dataRoot string, ds *Dataset, numShards int) error {
	if numShards <= 0 {
		numShards = 1
	}

	annsByImage := make(map[int][]AnnotationRecord, len(ds.Images))
	for _, a := range ds.Annotations {
		annsByImage[a.ImageID] = append(annsByImage[a.ImageID], a)
	}
	categoryNames := make(map[int]string, len(ds.Categories))
	for _, c := range ds.Categories {
		categoryNames[c.ID] = c.Name
	}

	fmtShardSuffix := func(idx int) string {
		return fmt.Sprintf("-%05d-of-%05d", idx, numShards)
	}

	var shardFile *os.File
	shardSize := int(math.Ceil(float64(len(ds.Images)) / float64(numShards)))
	shardIdx := -1

	for i, img := range ds.Images {
		if i%shardSize == 0 {
			shardIdx++
			if shardFile != nil {
				_ = shardFile.Close()
				shardFile = nil
			}

			shardPath := recordPath
			if numShards > 1 {
				shardPath += fmtShardSuffix(shardIdx)
			}
			f, err := os.Create(shardPath)
			if err != nil {
				return fmt.Errorf("failed to create shard at %q: %v", shardPath, err)
			}
			shardFile = f
		}

		features, err := imageFeatures(img, annsByImage[img.ID], categoryNames, dataRoot)
		if err != nil {
			log.Printf("Failed to convert %q: %v", img.FileName, err)
			continue
		}

		if err := writeTFRecordExample(shardFile, features); err != nil {
			log.Print("Failed to write example: ", err)
			break
		}
	}

	if shardFile != nil {
		shardFile.Close()
	}

	return writeTFRecordLabelMap(labelMapPath, ds.Categories)
}

// imageFeatures builds the object-detection feature map for one image and
// its annotations.
func imageFeatures(img ImageRecord, anns []AnnotationRecord,
	categoryNames map[int]string, dataRoot string) (map[string]interface{}, error) {

	path := filepath.Join(dataRoot, filepath.FromSlash(img.FileName))
	imgData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the image: %v", err)
	}
	_, format, err := decodeImageConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode the image metadata: %v", err)
	}

	f := make(map[string]interface{}, 16)
	f["image/height"] = img.Height
	f["image/width"] = img.Width
	f["image/filename"] = img.FileName
	f["image/source_id"] = fmt.Sprint(img.ID)
	f["image/encoded"] = imgData
	f["image/format"] = format

	xmins := make([]float32, len(anns))
	ymins := make([]float32, len(anns))
	xmaxs := make([]float32, len(anns))
	ymaxs := make([]float32, len(anns))
	classes := make([]string, len(anns))
	classIDs := make([]int64, len(anns))
	for i, a := range anns {
		xmins[i] = float32(a.BBox[0]) / float32(img.Width)
		ymins[i] = float32(a.BBox[1]) / float32(img.Height)
		xmaxs[i] = float32(a.BBox[0]+a.BBox[2]) / float32(img.Width)
		ymaxs[i] = float32(a.BBox[1]+a.BBox[3]) / float32(img.Height)
		classes[i] = categoryNames[a.CategoryID]
		classIDs[i] = int64(a.CategoryID)
	}
	f["image/object/bbox/xmin"] = xmins
	f["image/object/bbox/ymin"] = ymins
	f["image/object/bbox/xmax"] = xmaxs
	f["image/object/bbox/ymax"] = ymaxs
	f["image/object/class/text"] = classes
	f["image/object/class/label"] = classIDs

	return f, nil
}

// writeTFRecordExample serializes the feature map as a tensorflow.Example
// and writes it as a TFRecord to w.
func writeTFRecordExample(w io.Writer, features map[string]interface{}) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("conversion to TensorFlow Example failed: %v", e)
		}
	}()

	enc, err := proto.Marshal(example.New(features))
	if err != nil {
		return err
	}

	return tfrecord.Write(w, enc)
}

// writeTFRecordLabelMap writes the categories as a StringIntLabelMap
// prototext file, the shape the TensorFlow object detection tooling expects.
func writeTFRecordLabelMap(path string, categories []CategoryRecord) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create the label map file %q: %v", path, err)
	}
	defer closeWithErrCheck(file, &err)

	for _, c := range categories {
		if _, err := fmt.Fprintf(file, "item {\n  name: %q\n  id: %d\n}\n", c.Name, c.ID); err != nil {
			return err
		}
	}

	return nil
}
