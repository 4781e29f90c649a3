package rand

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/globalrefdb/pkg/model"
)

func TestRandLetterBytes(t *testing.T) {
	name := LetterString(20)
	require.Len(t, name, 20)
	assert.Equal(t, "", strings.Trim(name, letterBytes))
}

func TestObjectID(t *testing.T) {
	id := ObjectID()
	parsed, err := model.ParseObjectID(string(id))
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.False(t, id.IsZero())
	assert.NotEqual(t, id, ObjectID())
}

func TestNames(t *testing.T) {
	assert.True(t, strings.HasPrefix(BranchName(), "refs/heads/"))
	assert.True(t, strings.HasPrefix(ProjectName(), "project-"))
}

func benchmarkRandBytes(b *testing.B, size int) {
	for n := 0; n < b.N; n++ {
		_ = randBytes(size)
	}
}

func BenchmarkRandBytes20(b *testing.B)   { benchmarkRandBytes(b, 20) }
func BenchmarkRandBytes1000(b *testing.B) { benchmarkRandBytes(b, 1000) }
