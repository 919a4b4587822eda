package xhttp

import "github.com/valyala/fasthttp"

const (
	StatusOK                  = fasthttp.StatusOK
	StatusCreated             = fasthttp.StatusCreated
	StatusAccepted            = fasthttp.StatusAccepted
	StatusNoContent           = fasthttp.StatusNoContent
	StatusBadRequest          = fasthttp.StatusBadRequest
	StatusNotFound            = fasthttp.StatusNotFound
	StatusConflict            = fasthttp.StatusConflict
	StatusRequestTimeout      = fasthttp.StatusRequestTimeout
	StatusInternalServerError = fasthttp.StatusInternalServerError
)

func StatusText(code int) string {
	return fasthttp.StatusMessage(code)
}
