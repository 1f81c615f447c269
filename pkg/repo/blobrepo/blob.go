// Copyright © 2018 One Concern

package blobrepo

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/oneconcern/branchwrite/pkg/errors"
	"github.com/oneconcern/branchwrite/pkg/model"
	"github.com/oneconcern/branchwrite/pkg/repo/status"
	"github.com/oneconcern/branchwrite/pkg/storage"
	storagestatus "github.com/oneconcern/branchwrite/pkg/storage/status"
)

// encodingTag is the first byte of every stored blob
type encodingTag uint8

const (
	encodingRaw  encodingTag = 0
	encodingZstd encodingTag = 1
)

// zstd encoders and decoders are safe for concurrent use
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("blobrepo: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("blobrepo: zstd decoder initialization failed: " + err.Error())
	}
}

// encodeBlob prepends the encoding tag to the payload, compressed when worthwhile
func encodeBlob(data []byte, compress bool) []byte {
	if compress && len(data) > 0 {
		compressed := zstdEncoder.EncodeAll(data, []byte{byte(encodingZstd)})
		if len(compressed) < len(data)+1 {
			return compressed
		}
	}
	blob := make([]byte, 0, len(data)+1)
	blob = append(blob, byte(encodingRaw))
	return append(blob, data...)
}

func decodeBlob(blob []byte, size int64) ([]byte, error) {
	if len(blob) == 0 {
		return nil, status.ErrCorruptedObject.WrapMessage("empty blob")
	}
	switch encodingTag(blob[0]) {
	case encodingRaw:
		data := blob[1:]
		if int64(len(data)) != size {
			return nil, status.ErrCorruptedObject.WrapMessage("raw blob: size %d does not match expected %d", len(data), size)
		}
		return data, nil
	case encodingZstd:
		data, err := zstdDecoder.DecodeAll(blob[1:], make([]byte, 0, size))
		if err != nil {
			return nil, status.ErrCorruptedObject.Wrap(fmt.Errorf("zstd decompress: %w", err))
		}
		if int64(len(data)) != size {
			return nil, status.ErrCorruptedObject.WrapMessage("zstd blob: size %d does not match expected %d", len(data), size)
		}
		return data, nil
	default:
		return nil, status.ErrCorruptedObject.WrapMessage("unsupported blob encoding: %d", blob[0])
	}
}

// putBlob stores some content and returns its entry. Storing an already known blob is a no-op.
func (r *Repo) putBlob(ctx context.Context, p string, data []byte) (model.Entry, error) {
	entry := model.Entry{
		Path: p,
		Hash: model.HashContent(data),
		Size: int64(len(data)),
	}
	key := model.GetArchivePathToBlob(entry.Hash)

	err := r.store.Put(ctx, key, bytes.NewReader(encodeBlob(data, r.compress)), storage.NoOverWrite)
	if err != nil && !errors.Is(err, storagestatus.ErrExists) {
		return model.Entry{}, err
	}
	return entry, nil
}

// blobSource serves ranged reads of a blob's decoded content
type blobSource interface {
	readAt(ctx context.Context, offset int64, n int) ([]byte, error)
}

// rawSource reads ranges of a raw blob directly from storage
type rawSource struct {
	at io.ReaderAt
}

func (s rawSource) readAt(_ context.Context, offset int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := s.at.ReadAt(buf, offset+1) // skip the encoding tag
	if err != nil && err != io.EOF {
		return nil, err
	}
	if read < n {
		return nil, status.ErrCorruptedObject.WrapMessage("short read: got %d bytes, expected %d", read, n)
	}
	return buf, nil
}

// memSource serves a decoded blob held in memory
type memSource struct {
	data []byte
}

func (s memSource) readAt(_ context.Context, offset int64, n int) ([]byte, error) {
	out := make([]byte, n)
	copy(out, s.data[offset:offset+int64(n)])
	return out, nil
}

// openBlob prepares ranged reads on a blob: raw blobs are read in place,
// compressed blobs are fetched and decoded once.
func (r *Repo) openBlob(ctx context.Context, entry model.Entry) (blobSource, error) {
	if entry.Size == 0 {
		return memSource{}, nil
	}
	key := model.GetArchivePathToBlob(entry.Hash)

	at, err := r.store.GetAt(ctx, key)
	if err != nil {
		return nil, err
	}
	tag := make([]byte, 1)
	if _, err = at.ReadAt(tag, 0); err != nil && err != io.EOF {
		return nil, err
	}
	if encodingTag(tag[0]) == encodingRaw {
		return rawSource{at: at}, nil
	}

	blob, err := storage.ReadAll(ctx, r.store, key)
	if err != nil {
		return nil, err
	}
	data, err := decodeBlob(blob, entry.Size)
	if err != nil {
		return nil, err
	}
	return memSource{data: data}, nil
}
