package browse

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("browsehtml.lib.browse")
