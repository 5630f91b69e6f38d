package api

import (
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/fintech-community/peerbench/engine/schema"
	"github.com/fintech-community/peerbench/engine/types"
)

// maxProfileBody bounds compare-by-profile request bodies
const maxProfileBody = 64 << 10

// parseProfile reads a partial profile from a JSON body or from form fields. Blank
// fields are absent; anything that is not a finite number is rejected.
func (s *server) parseProfile(w http.ResponseWriter, r *http.Request) (types.PartialProfile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxProfileBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return types.PartialProfile{}, fmt.Errorf("%w: %v", types.ErrInvalidProfile, err)
		}
		return s.validator.DecodeJSON(body)
	}

	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(maxProfileBody)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return types.PartialProfile{}, fmt.Errorf("%w: %v", types.ErrInvalidProfile, err)
	}

	values := make(map[string]float64, len(schema.ProfileFields))
	for _, field := range schema.ProfileFields {
		raw := strings.TrimSpace(r.PostForm.Get(field))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return types.PartialProfile{}, fmt.Errorf("%w: %s must be a number, got %q", types.ErrInvalidProfile, field, raw)
		}
		values[field] = v
	}

	return s.validator.DecodeValues(values)
}
