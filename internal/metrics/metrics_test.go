package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(fileOpsTotal.WithLabelValues("rename", "error"))
	RecordFileOp("rename", false)
	assert.Equal(t, before+1, testutil.ToFloat64(fileOpsTotal.WithLabelValues("rename", "error")))

	before = testutil.ToFloat64(listErrors)
	RecordDirListed(true)
	RecordDirListed(false)
	assert.Equal(t, before+1, testutil.ToFloat64(listErrors))

	SetUndoDepth(3, 1)
	assert.Equal(t, 3.0, testutil.ToFloat64(undoDepth.WithLabelValues("undo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(undoDepth.WithLabelValues("redo")))

	before = testutil.ToFloat64(resultsReturned.WithLabelValues("search"))
	RecordTraversal("search", "complete", 10*time.Millisecond, 7)
	assert.Equal(t, before+7, testutil.ToFloat64(resultsReturned.WithLabelValues("search")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordThumbnailLookup(true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "solstice_thumbnail_lookups_total")
}
