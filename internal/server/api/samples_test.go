package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/signspeak/internal/detector"
	"github.com/ayusman/signspeak/internal/recognizer"
	"github.com/ayusman/signspeak/internal/store"
)

func TestSamplesHandler_CreateListDelete(t *testing.T) {
	env := newTestEnv(t)
	h := NewSamplesHandler(env.store, env.rec)

	rec, _ := serve(t, h.Create, jsonRequest(t, http.MethodPost, "/api/samples", map[string]any{"vector": []float64{1, 2}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "label required")

	rec, resp := serve(t, h.Create, jsonRequest(t, http.MethodPost, "/api/samples", map[string]any{"label": "Hello"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No hand captured yet", resp.Message)

	rec, resp = serve(t, h.Create, jsonRequest(t, http.MethodPost, "/api/samples", map[string]any{
		"label": " Hello ", "vector": []float64{0.1, 0.2, 0.3, 0.4},
	}))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created store.Sample
	decodeData(t, resp, &created)
	assert.Equal(t, "Hello", created.Label)
	assert.Equal(t, 1, env.rec.Classifier().Len(), "classifier rebuilt after save")

	rec, _ = serve(t, h.Create, jsonRequest(t, http.MethodPost, "/api/samples", map[string]any{
		"label": "Yes", "vector": []float64{1, 2},
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "dimension must match existing samples")

	rec, resp = serve(t, h.List, jsonRequest(t, http.MethodGet, "/api/samples", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Samples []store.Sample `json:"samples"`
		Labels  map[string]int `json:"labels"`
	}
	decodeData(t, resp, &list)
	assert.Len(t, list.Samples, 1)
	assert.Equal(t, map[string]int{"Hello": 1}, list.Labels)

	req := withParams(jsonRequest(t, http.MethodDelete, "/api/samples/"+created.ID, nil), map[string]string{"id": created.ID})
	rec, _ = serve(t, h.Delete, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.rec.Classifier().Len())

	rec, _ = serve(t, h.Delete, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSamplesHandler_CreateFromCapture(t *testing.T) {
	env := newTestEnv(t)
	h := NewSamplesHandler(env.store, env.rec)

	palm := detector.OpenPalmLandmarks()
	env.detector.SetHands([]detector.HandLandmarks{palm})
	require.NoError(t, env.rec.Start(recognizer.ModeCapture))
	require.Eventually(t, func() bool {
		return env.rec.LastCaptured() != nil
	}, 2*time.Second, 5*time.Millisecond)
	env.rec.Stop()

	rec, resp := serve(t, h.Create, jsonRequest(t, http.MethodPost, "/api/samples", map[string]any{"label": "Hello"}))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created store.Sample
	decodeData(t, resp, &created)
	assert.Equal(t, palm.Flatten(), created.Vector)
	assert.Equal(t, 2*detector.NumLandmarks, env.rec.Classifier().Dim())
}

func TestSamplesHandler_Reload(t *testing.T) {
	env := newTestEnv(t)
	h := NewSamplesHandler(env.store, env.rec)

	require.NoError(t, env.store.Samples().CreateBatch([]*store.Sample{
		{Label: "A", Vector: []float64{0, 0}},
		{Label: "B", Vector: []float64{1, 1}},
	}))

	rec, resp := serve(t, h.ReloadSamples, jsonRequest(t, http.MethodPost, "/api/samples/reload", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got reloadResponse
	decodeData(t, resp, &got)
	assert.Equal(t, reloadResponse{Samples: 2, Dimension: 2}, got)
	assert.Equal(t, 2, env.rec.Classifier().Len())

	_, err := env.store.DB().Exec(`INSERT INTO samples (id, label, vector, created_at) VALUES ('c', 'C', '[1,2,3]', 1)`)
	require.NoError(t, err)
	rec, _ = serve(t, h.ReloadSamples, jsonRequest(t, http.MethodPost, "/api/samples/reload", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 2, env.rec.Classifier().Len(), "previous classifier kept")
}

func TestSamplesHandler_CreateChecksStoredSamples(t *testing.T) {
	env := newTestEnv(t)
	h := NewSamplesHandler(env.store, env.rec)

	// Written behind the server's back, so the recognizer's classifier is still empty.
	require.NoError(t, env.store.Samples().CreateBatch([]*store.Sample{
		{Label: "A", Vector: []float64{0, 0}},
		{Label: "B", Vector: []float64{1, 1}},
	}))
	require.Zero(t, env.rec.Classifier().Len())

	rec, resp := serve(t, h.Create, jsonRequest(t, http.MethodPost, "/api/samples", map[string]any{
		"label": "C", "vector": []float64{1, 2, 3, 4},
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Vector length does not match existing samples", resp.Message)

	list, err := env.store.Samples().List()
	require.NoError(t, err)
	assert.Len(t, list, 2, "rejected sample not stored")

	rec, _ = serve(t, h.ReloadSamples, jsonRequest(t, http.MethodPost, "/api/samples/reload", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, env.rec.Classifier().Dim())
}
