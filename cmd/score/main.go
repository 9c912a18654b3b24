package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/prepvoice/prepvoice/internal/database"
	"github.com/prepvoice/prepvoice/internal/feedback"
	"github.com/prepvoice/prepvoice/internal/models"
	"github.com/prepvoice/prepvoice/internal/storage"
)

// score re-runs feedback scoring on a saved transcript, outside the server.
// Useful for re-scoring after prompt changes or for transcripts already in
// the archive bucket.
//
//	score -interview <id> -user <id> transcript.json
//	score -interview <id> -user <id> -call <callID>   (reads from MinIO)
//
// When MONGODB_URI is set the result is upserted like the live path;
// otherwise it is printed to stdout only.
func main() {
	interviewID := flag.String("interview", "", "interview id the transcript belongs to")
	userID := flag.String("user", "", "user id the transcript belongs to")
	callID := flag.String("call", "", "fetch the transcript of this call from the archive bucket")
	flag.Parse()

	fromFile := flag.NArg() == 1 && *callID == ""
	fromArchive := flag.NArg() == 0 && *callID != ""
	if (!fromFile && !fromArchive) || *interviewID == "" || *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: score -interview <id> -user <id> [-call <callID> | <transcript.json>]")
		os.Exit(2)
	}

	var transcript []models.TranscriptMessage
	var err error
	if fromArchive {
		transcript, err = fetchArchived(*callID)
	} else {
		transcript, err = readTranscript(flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("read transcript: %v", err)
	}

	scorer, err := feedback.NewLLMScorer(os.Getenv("LLM_BASE_URL"), llmAPIKey(), llmModel())
	if err != nil {
		log.Fatalf("LLM init failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var repo feedback.Repository = printRepo{}
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI != "" {
		client, err := database.ConnectMongo(ctx, mongoURI, 10*time.Second)
		if err != nil {
			log.Fatalf("connect mongo: %v", err)
		}
		defer func() { _ = client.Disconnect(ctx) }()
		dbName := os.Getenv("MONGODB_DATABASE")
		if dbName == "" {
			dbName = "prepvoice"
		}
		repo = feedback.NewMongoRepository(client.Database(dbName).Collection("feedback"))
	} else {
		log.Printf("MONGODB_URI not set; printing feedback without persisting")
	}

	svc := feedback.NewService(repo, scorer)
	fb, err := svc.CreateFromTranscript(ctx, feedback.CreateRequest{
		InterviewID: *interviewID,
		UserID:      *userID,
		Transcript:  transcript,
	})
	if err != nil {
		log.Fatalf("scoring failed: %v", err)
	}

	out, _ := json.MarshalIndent(fb, "", "  ")
	fmt.Println(string(out))
}

func fetchArchived(callID string) ([]models.TranscriptMessage, error) {
	cfg := storage.LoadMinIOConfig()
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("MINIO_ENDPOINT not set")
	}
	store, err := storage.NewMinIOStorage(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return store.FetchTranscript(ctx, callID)
}

func readTranscript(path string) ([]models.TranscriptMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// accept either a bare message array or the archive object shape
	var msgs []models.TranscriptMessage
	if err := json.Unmarshal(data, &msgs); err == nil {
		return msgs, nil
	}
	var archived struct {
		Messages []models.TranscriptMessage `json:"messages"`
	}
	if err := json.Unmarshal(data, &archived); err != nil {
		return nil, fmt.Errorf("unrecognized transcript format: %w", err)
	}
	return archived.Messages, nil
}

func llmAPIKey() string {
	if k := os.Getenv("LLM_API_KEY"); k != "" {
		return k
	}
	return os.Getenv("OPENAI_API_KEY")
}

func llmModel() string {
	if m := os.Getenv("LLM_MODEL"); m != "" {
		return m
	}
	return "gpt-4o-mini"
}

// printRepo satisfies feedback.Repository without a database.
type printRepo struct{}

func (printRepo) Upsert(ctx context.Context, fb *models.Feedback) (*models.Feedback, error) {
	fb.CreatedAt = time.Now().UTC()
	return fb, nil
}

func (printRepo) GetByInterview(ctx context.Context, interviewID, userID string) (*models.Feedback, error) {
	return nil, nil
}
