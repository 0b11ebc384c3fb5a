package broadcast

import (
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/wa-broadcast/internal/util"
)

// DocumentMIME is the only media type the broadcast sends.
const DocumentMIME = "application/pdf"

// MaxDocumentBytes is the provider's documented ceiling for document media.
// It is not enforced locally; oversized files are rejected by the provider.
const MaxDocumentBytes = 16 << 20

// detectMIME guesses the media type from the file extension and forces it
// to application/pdf, warning when the guess disagrees.
func detectMIME(path string, log zerolog.Logger) string {
	guessed := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if i := strings.IndexByte(guessed, ';'); i >= 0 {
		guessed = strings.TrimSpace(guessed[:i])
	}
	if guessed != "" && guessed != DocumentMIME {
		log.Warn().
			Str("path", path).
			Str("detected", guessed).
			Msg("broadcast: detected MIME type is not PDF, forcing application/pdf")
	}
	return DocumentMIME
}

func checkDocumentSize(path string, log zerolog.Logger) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if err := util.EnsureMaxBytes("document", info.Size(), MaxDocumentBytes); err != nil {
		log.Warn().
			Str("path", path).
			Err(err).
			Msg("broadcast: upload will likely be rejected by the provider")
	}
}
