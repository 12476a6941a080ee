package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sourcegraph/conc/panics"

	"github.com/kirillkom/context-assistant/internal/core/domain"
	"github.com/kirillkom/context-assistant/internal/core/ports"
)

const (
	documentErrorPrefix = "Erro ao ler o documento"
	pageErrorPrefix     = "Erro ao acessar o site"
	videoErrorPrefix    = "Erro ao obter transcrição do vídeo"
)

var DefaultTranscriptLanguages = []string{"pt", "pt-BR"}

// ExtractionUseCase wraps every extractor in the same error boundary: a failure,
// including a parser panic, becomes an error-tagged result instead of escaping.
type ExtractionUseCase struct {
	documents   ports.DocumentExtractor
	pages       ports.PageExtractor
	transcripts ports.TranscriptFetcher
	languages   []string
}

func NewExtractionUseCase(
	documents ports.DocumentExtractor,
	pages ports.PageExtractor,
	transcripts ports.TranscriptFetcher,
	languages []string,
) *ExtractionUseCase {
	if len(languages) == 0 {
		languages = DefaultTranscriptLanguages
	}
	return &ExtractionUseCase{
		documents:   documents,
		pages:       pages,
		transcripts: transcripts,
		languages:   languages,
	}
}

func (uc *ExtractionUseCase) Document(ctx context.Context, filename, mimeType string, body io.Reader) domain.ExtractionResult {
	text, err := guard(func() (string, error) {
		return uc.documents.Extract(ctx, filename, mimeType, body)
	})
	return newResult(domain.SourceDocument, filename, documentErrorPrefix, text, err)
}

func (uc *ExtractionUseCase) Page(ctx context.Context, pageURL string) domain.ExtractionResult {
	text, err := guard(func() (string, error) {
		return uc.pages.Extract(ctx, pageURL)
	})
	return newResult(domain.SourcePage, pageURL, pageErrorPrefix, text, err)
}

func (uc *ExtractionUseCase) Video(ctx context.Context, videoURL string) domain.ExtractionResult {
	text, err := guard(func() (string, error) {
		videoID := VideoID(videoURL)
		if strings.TrimSpace(videoID) == "" {
			return "", fmt.Errorf("no video id in %q", videoURL)
		}
		fragments, err := uc.transcripts.FetchTranscript(ctx, videoID, uc.languages)
		if err != nil {
			return "", err
		}
		parts := make([]string, 0, len(fragments))
		for _, fragment := range fragments {
			parts = append(parts, fragment.Text)
		}
		return strings.Join(parts, " "), nil
	})
	return newResult(domain.SourceVideo, videoURL, videoErrorPrefix, text, err)
}

// VideoID takes whatever follows the last "v=" up to the first "&".
// Links without a literal v= parameter yield their own remainder.
func VideoID(link string) string {
	parts := strings.Split(link, "v=")
	tail := parts[len(parts)-1]
	return strings.SplitN(tail, "&", 2)[0]
}

func guard(fn func() (string, error)) (text string, err error) {
	var catcher panics.Catcher
	catcher.Try(func() {
		text, err = fn()
	})
	if recovered := catcher.Recovered(); recovered != nil {
		return "", recovered.AsError()
	}
	return text, err
}

func newResult(source domain.ContextSource, origin, errPrefix, text string, err error) domain.ExtractionResult {
	if err != nil {
		return domain.ExtractionResult{
			Kind:   domain.ExtractionError,
			Source: source,
			Origin: origin,
			Text:   fmt.Sprintf("%s: %v", errPrefix, err),
		}
	}
	return domain.ExtractionResult{
		Kind:   domain.ExtractionOK,
		Source: source,
		Origin: origin,
		Text:   text,
	}
}
