package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	istorage "github.com/T3-Labs/coop-cam/internal/storage"
	"github.com/T3-Labs/coop-cam/pkg/circuit"
	"github.com/T3-Labs/coop-cam/pkg/config"
	"github.com/T3-Labs/coop-cam/pkg/logger"
	"github.com/T3-Labs/coop-cam/pkg/mjpeg"
	"github.com/T3-Labs/coop-cam/pkg/ring"
	"github.com/T3-Labs/coop-cam/pkg/stream"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	m.Run()
}

func testMux(t *testing.T, engine *stream.Engine) *http.ServeMux {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// Source nunca iniciado: só alimenta as estatísticas de fila do mux
	source := stream.NewSource(ctx, stream.SourceOptions{
		URL: "http://127.0.0.1:1/video",
	}, engine, circuit.NewBreaker("upstream-test", 3, 10*time.Second))

	snapshots := istorage.NewRedisStore("", 0, nil, nil, false)
	return newMux(&config.Config{}, engine, source, ring.NewPreBuffer(10, false), nil, snapshots)
}

func jpegStill(payload string) mjpeg.Frame {
	var b bytes.Buffer
	b.Write(mjpeg.SOI)
	b.WriteString(payload)
	b.Write(mjpeg.EOI)
	return mjpeg.Frame{Seq: 1, Data: b.Bytes(), Timestamp: time.Now()}
}

func TestSnapshotServesLastFrame(t *testing.T) {
	engine := stream.NewEngine(stream.Options{}, nil)
	frame := jpegStill("imagem-parada")
	engine.OnFrame(frame)

	mux := testMux(t, engine)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/jpeg", rr.Header().Get("Content-Type"))
	assert.Equal(t, frame.Data, rr.Body.Bytes())
}

func TestSnapshotNotFoundWithoutFrame(t *testing.T) {
	engine := stream.NewEngine(stream.Options{}, nil)
	mux := testMux(t, engine)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStatsEndpointRespondsJSON(t *testing.T) {
	engine := stream.NewEngine(stream.Options{}, nil)
	mux := testMux(t, engine)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "stream")
}
