package assist

import "context"

type Repository interface {
	// SaveNote stores the draft as an ai_summary document and a consultation
	// note, atomically.
	SaveNote(ctx context.Context, n *Note) error
}
