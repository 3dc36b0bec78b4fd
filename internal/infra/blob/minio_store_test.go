package blob

import (
	"errors"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
)

func TestPublicObjectURLEscapesSegments(t *testing.T) {
	got := publicObjectURL("https://cdn.example.com/quiz/", "selfies/game1/Team Rocket.jpg")
	require.Equal(t, "https://cdn.example.com/quiz/selfies/game1/Team%20Rocket.jpg", got)
}

func TestObjectNameTrimsLeadingSlash(t *testing.T) {
	require.Equal(t, "media/tune.mp3", objectName(" /media/tune.mp3 "))
	require.Equal(t, "", objectName("/"))
}

func TestIsNotFound(t *testing.T) {
	require.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}))
	require.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}))
	require.False(t, isNotFound(errors.New("connection refused")))
}
