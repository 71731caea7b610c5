package report

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-downloader/pkg/models"
)

func TestRecords_SortedBySheetOrder(t *testing.T) {
	c := NewCollector()
	c.Record(models.TaskReport{RowIndex: 4, PartNumber: "C"})
	c.Record(models.TaskReport{RowIndex: 2, PartNumber: "B"})
	c.Record(models.TaskReport{RowIndex: 2, PartNumber: "A"})

	got := c.Records()
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].PartNumber)
	assert.Equal(t, "B", got[1].PartNumber)
	assert.Equal(t, 4, got[2].RowIndex)
}

func TestRecords_ReturnsCopy(t *testing.T) {
	c := NewCollector()
	c.Record(models.TaskReport{RowIndex: 2, PartNumber: "A"})

	got := c.Records()
	got[0].PartNumber = "mutated"

	assert.Equal(t, "A", c.Records()[0].PartNumber)
}

func TestRow_MatchesHeader(t *testing.T) {
	r := models.TaskReport{
		RowIndex:            3,
		PartNumber:          "ABC-123",
		AssetType:           models.AssetTypeImage,
		URL:                 "https://example.com/a.jpg",
		Status:              models.TaskStatusSucceeded,
		StatusCode:          200,
		ContentType:         "image/jpeg",
		Bytes:               1024,
		Message:             "Success",
		LocalPath:           "/data/images/ABC_123.jpg",
		NetworkPath:         `\\server\share\images\ABC_123.jpg`,
		BackgroundProcessed: true,
	}

	row := Row(r)
	require.Len(t, row, len(Header))
	assert.Equal(t, "3", row[0])
	assert.Equal(t, "ABC-123", row[1])
	assert.Equal(t, "image", row[2])
	assert.Equal(t, "succeeded", row[4])
	assert.Equal(t, "200", row[5])
	assert.Equal(t, "1024", row[7])
	assert.Equal(t, "true", row[11])
}

func TestRow_OmitsZeroHTTPStatus(t *testing.T) {
	row := Row(models.TaskReport{Status: models.TaskStatusFailed})
	assert.Equal(t, "", row[5], "a task that never reached HTTP has no status code")
}

func TestCollector_ConcurrentRecord(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				c.Record(models.TaskReport{RowIndex: i, PartNumber: "P"})
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 500, c.Len())
}
