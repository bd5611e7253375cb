package downloader

import (
	"context"

	"github.com/elsanchez/downlodr/internal/domain"
)

// Runner ejecuta un job de descarga hasta que termina o ctx se cancela.
// progress se invoca por cada actualización del worker, en orden.
type Runner interface {
	Run(ctx context.Context, spec domain.JobSpec, progress func(domain.Progress)) error
}

// CookieSource entrega el cookie jar a usar para una URL ("" si no hay)
type CookieSource interface {
	CookieFile(ctx context.Context, rawURL string) (string, error)
}
