package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/prepvoice/prepvoice/internal/models"
)

// transcriptArchive is the stored shape of one finished call transcript.
type transcriptArchive struct {
	CallID     string                     `json:"callId"`
	ArchivedAt time.Time                  `json:"archivedAt"`
	Messages   []models.TranscriptMessage `json:"messages"`
}

// ArchiveTranscript stores the transcript of a finished call as a JSON
// object and returns the object key.
func (s *MinIOStorage) ArchiveTranscript(ctx context.Context, callID string, transcript []models.TranscriptMessage) (string, error) {
	key := transcriptKey(callID)
	data, err := json.Marshal(transcriptArchive{
		CallID:     callID,
		ArchivedAt: time.Now().UTC(),
		Messages:   transcript,
	})
	if err != nil {
		return "", err
	}
	if err := s.putObject(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

// FetchTranscript reads an archived transcript back out of the bucket.
func (s *MinIOStorage) FetchTranscript(ctx context.Context, callID string) ([]models.TranscriptMessage, error) {
	obj, err := s.getObject(ctx, transcriptKey(callID))
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	var archived transcriptArchive
	if err := json.NewDecoder(obj).Decode(&archived); err != nil {
		return nil, err
	}
	return archived.Messages, nil
}

// TranscriptURL returns a presigned download URL for an archived transcript.
func (s *MinIOStorage) TranscriptURL(ctx context.Context, callID string, expires time.Duration) (string, error) {
	return s.presignedGet(ctx, transcriptKey(callID), expires)
}

func transcriptKey(callID string) string {
	return "transcripts/" + callID + ".json"
}
