package blobstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	f := NewFile(dir + "/")

	key := "fingerprints/s3%3A%2F%2Fb%2Fx.bam.somalier"
	require.NoError(t, f.Put(ctx, key, []byte{2, 2, 'a', 'b'}, map[string]string{"Subject-Identifier": "SBJ00001"}))
	data, attrs, err := f.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 2, 'a', 'b'}, data)
	assert.Equal(t, "SBJ00001", attrs.Metadata["subject-identifier"])
	assert.EqualValues(t, 4, attrs.Size)
	assert.False(t, attrs.LastModified.IsZero())

	require.NoError(t, f.Put(ctx, "fingerprints/plain", nil, nil))
	attrs, err = f.Head(ctx, "fingerprints/plain")
	require.NoError(t, err)
	assert.Empty(t, attrs.Metadata)

	_, _, err = f.Get(ctx, "fingerprints/missing")
	assert.True(t, errors.Is(errors.NotExist, err))
	_, err = f.Head(ctx, "fingerprints/missing")
	assert.True(t, errors.Is(errors.NotExist, err))
}

func TestFileListPaging(t *testing.T) {
	ctx := context.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	f := NewFile(dir)
	f.PageSize = 3
	for i := 0; i < 7; i++ {
		require.NoError(t, f.Put(ctx, fmt.Sprintf("f/%02d", i), nil, map[string]string{"k": "v"}))
	}
	require.NoError(t, f.Put(ctx, "other/0", nil, nil))
	require.NoError(t, f.Put(ctx, "f/sub/0", nil, nil))

	var (
		keys  []string
		token string
		pages int
	)
	for {
		page, err := f.List(ctx, "f/", token)
		require.NoError(t, err)
		pages++
		for _, e := range page.Entries {
			keys = append(keys, e.Key)
		}
		if page.Next == "" {
			break
		}
		token = page.Next
	}
	assert.Equal(t, 3, pages)
	assert.Equal(t, []string{"f/00", "f/01", "f/02", "f/03", "f/04", "f/05", "f/06", "f/sub/0"}, keys)

	page, err := f.List(ctx, "f/0", "")
	require.NoError(t, err)
	assert.Len(t, page.Entries, 3)

	page, err = f.List(ctx, "nothing/", "")
	require.NoError(t, err)
	assert.Empty(t, page.Entries)

	_, err = f.List(ctx, "f/", "x")
	assert.True(t, errors.Is(errors.Invalid, err))
}
