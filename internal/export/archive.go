package export

import (
	"bytes"
	"fmt"
	"path"

	"github.com/klauspost/compress/zip"
)

type encodedItem struct {
	image     AggregatedImage
	split     Split
	labelFile string
}

// assembleArchive builds the dataset zip in memory: split directory entries,
// the manifest at the archive root, and one label file plus one image file
// per item. Members use the Store method since image bytes are typically
// already compressed. Returns the complete archive or nothing; a partial
// buffer is never handed back.
func assembleArchive(datasetName string, items []encodedItem, index LabelIndex, encoder Encoder) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, dir := range []string{"images/train", "images/val", "labels/train", "labels/val"} {
		if _, err := zw.Create(datasetName + "/" + dir + "/"); err != nil {
			return nil, fmt.Errorf("%w: creating directory entry %s: %v", ErrArchiveWrite, dir, err)
		}
	}

	manifest, err := encoder.Manifest(index)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveWrite, err)
	}
	if err := writeStored(zw, datasetName+"/"+encoder.ManifestFilename(), manifest); err != nil {
		return nil, err
	}

	for _, item := range items {
		// The base name starts with the image's own id so that two uploads
		// sharing an original filename can never overwrite each other.
		ext := path.Ext(item.image.Record.OriginalFilename)
		stem := item.image.Record.OriginalFilename[:len(item.image.Record.OriginalFilename)-len(ext)]
		base := item.image.Record.Id.String() + "_" + stem

		labelName := fmt.Sprintf("%s/labels/%s/%s%s", datasetName, item.split, base, encoder.LabelFileExt())
		if err := writeStored(zw, labelName, []byte(item.labelFile)); err != nil {
			return nil, err
		}

		imageName := fmt.Sprintf("%s/images/%s/%s%s", datasetName, item.split, base, ext)
		if err := writeStored(zw, imageName, item.image.Data); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: finalizing archive: %v", ErrArchiveWrite, err)
	}

	return buf.Bytes(), nil
}

func writeStored(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		return fmt.Errorf("%w: creating archive member %s: %v", ErrArchiveWrite, name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: writing archive member %s: %v", ErrArchiveWrite, name, err)
	}
	return nil
}
