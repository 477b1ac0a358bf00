package export

import (
	"context"
	"sync"

	"annotation-backend/internal/database"

	"github.com/google/uuid"
)

// AggregatedImage bundles everything the encoders need for one image: the
// database record, the raw object bytes, and the image's annotations. It is
// built once per export job and never shared across jobs.
type AggregatedImage struct {
	Record      database.Image
	Data        []byte
	Annotations []database.Annotation
}

type fetchTask struct {
	ordinal int
	id      uuid.UUID
}

type fetchResult struct {
	ordinal int
	image   AggregatedImage
	err     error
}

// aggregate fetches the record, bytes, and annotations for every id, with up
// to e.workers images in flight at once. Results are placed back at their
// resolver ordinal so downstream split assignment sees the original order.
// Any single fetch failure aborts the aggregation with an AggregationError
// naming the image; in-flight siblings are allowed to finish but their
// results are discarded.
func (e *Exporter) aggregate(ctx context.Context, ids []uuid.UUID) ([]AggregatedImage, error) {
	queue := make(chan fetchTask, len(ids))
	for i, id := range ids {
		queue <- fetchTask{ordinal: i, id: id}
	}
	close(queue)

	completed := make(chan fetchResult, len(ids))

	workers := min(len(ids), e.workers)
	wg := sync.WaitGroup{}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()

			for task := range queue {
				image, err := e.fetchImage(ctx, task.id)
				if err != nil {
					completed <- fetchResult{err: &AggregationError{ImageId: task.id, Err: err}}
					continue
				}
				completed <- fetchResult{ordinal: task.ordinal, image: image}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(completed)
	}()

	// Full barrier: drain every result before anything downstream runs.
	images := make([]AggregatedImage, len(ids))
	var firstErr error
	for res := range completed {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		images[res.ordinal] = res.image
	}

	if firstErr != nil {
		return nil, firstErr
	}

	return images, nil
}

// fetchImage retrieves one image's triple. The blob read needs the record's
// bucket and key, so the record is fetched first; the blob and annotation
// reads then run concurrently.
func (e *Exporter) fetchImage(ctx context.Context, id uuid.UUID) (AggregatedImage, error) {
	record, err := database.GetImage(ctx, e.db, id)
	if err != nil {
		return AggregatedImage{}, err
	}

	type blobResult struct {
		data []byte
		err  error
	}
	blobCh := make(chan blobResult, 1)
	go func() {
		data, err := e.objects.GetObject(ctx, record.S3Bucket, record.S3Key)
		blobCh <- blobResult{data: data, err: err}
	}()

	annotations, annErr := database.GetAnnotations(ctx, e.db, id)

	blob := <-blobCh
	if blob.err != nil {
		return AggregatedImage{}, blob.err
	}
	if annErr != nil {
		return AggregatedImage{}, annErr
	}

	return AggregatedImage{Record: record, Data: blob.data, Annotations: annotations}, nil
}
