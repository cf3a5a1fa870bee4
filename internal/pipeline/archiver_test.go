package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/floorarb/floorarb/internal/domain"
	"github.com/floorarb/floorarb/internal/testutil"
)

type capturedPut struct {
	path        string
	contentType string
	body        []byte
}

type fakeBlobWriter struct {
	mu   sync.Mutex
	puts []capturedPut
}

func (w *fakeBlobWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.puts = append(w.puts, capturedPut{path: path, contentType: contentType, body: body})
	return nil
}

func (w *fakeBlobWriter) all() []capturedPut {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]capturedPut, len(w.puts))
	copy(out, w.puts)
	return out
}

func listingEv(hash string, price int64) domain.ListingEvent {
	return domain.ListingEvent{
		Collection: common.HexToAddress("0x2222"),
		TokenID:    big.NewInt(42),
		PriceWei:   big.NewInt(price),
		ChainID:    1,
		OrderHash:  hash,
		ObservedAt: time.Now().UTC(),
	}
}

func TestArchiverFlushesFullBatches(t *testing.T) {
	writer := &fakeBlobWriter{}
	arch := NewListingArchiver(ArchiverConfig{
		KeyPrefix:     "listings",
		BatchSize:     2,
		FlushInterval: time.Hour,
	}, writer, testutil.Logger())

	events := make(chan domain.Event, 4)
	events <- listingEv("0xa", 100)
	events <- domain.BlockEvent{Number: 1} // not archived
	events <- listingEv("0xb", 200)
	close(events)

	require.NoError(t, arch.Run(context.Background(), events))

	puts := writer.all()
	require.Len(t, puts, 1)
	require.Equal(t, "application/x-ndjson", puts[0].contentType)
	require.True(t, strings.HasPrefix(puts[0].path, "listings/"))
	require.True(t, strings.HasSuffix(puts[0].path, ".ndjson"))

	var rows []archivedListing
	sc := bufio.NewScanner(bytes.NewReader(puts[0].body))
	for sc.Scan() {
		var row archivedListing
		require.NoError(t, json.Unmarshal(sc.Bytes(), &row))
		rows = append(rows, row)
	}
	require.Len(t, rows, 2)
	require.Equal(t, "0xa", rows[0].OrderHash)
	require.Equal(t, "200", rows[1].PriceWei)
}

func TestArchiverFlushesRemainderOnClose(t *testing.T) {
	writer := &fakeBlobWriter{}
	arch := NewListingArchiver(ArchiverConfig{
		BatchSize:     100,
		FlushInterval: time.Hour,
	}, writer, testutil.Logger())

	events := make(chan domain.Event, 1)
	events <- listingEv("0xa", 100)
	close(events)

	require.NoError(t, arch.Run(context.Background(), events))
	require.Len(t, writer.all(), 1)
}

func TestArchiverFlushesOnInterval(t *testing.T) {
	writer := &fakeBlobWriter{}
	arch := NewListingArchiver(ArchiverConfig{
		BatchSize:     100,
		FlushInterval: 20 * time.Millisecond,
	}, writer, testutil.Logger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan domain.Event, 1)
	events <- listingEv("0xa", 100)

	done := make(chan error, 1)
	go func() { done <- arch.Run(ctx, events) }()

	require.Eventually(t, func() bool {
		return len(writer.all()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
