// Package server exposes the codec over HTTP.
package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/magicbird9803/Unsimplifier-master/pkg/codec"
	"github.com/magicbird9803/Unsimplifier-master/pkg/datatype"
	"github.com/magicbird9803/Unsimplifier-master/pkg/elf"
	"github.com/magicbird9803/Unsimplifier-master/pkg/layout"
	"github.com/magicbird9803/Unsimplifier-master/pkg/schema"
)

type Server struct {
	codec        *codec.Codec
	maxBodyBytes int64
}

func New(c *codec.Codec, maxBodyBytes int64) *Server {
	return &Server{codec: c, maxBodyBytes: maxBodyBytes}
}

// Echo returns an echo instance with logging, recovery and the API routes.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	s.Register(e)
	return e
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/types", s.handleTypes)
	e.GET("/v1/types/:type/schema", s.handleSchema)
	e.POST("/v1/parse/:type", s.handleParse)
	e.POST("/v1/serialize/:type", s.handleSerialize)
	e.POST("/v1/verify/:type", s.handleVerify)
}

type typeInfo struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName,omitempty"`
	Layout      string   `json:"layout"`
	Divisions   []string `json:"divisions"`
}

func (s *Server) handleTypes(c *echo.Context) error {
	out := []typeInfo{}
	for _, dt := range datatype.FileTypes() {
		l := layout.For(dt)
		info := typeInfo{Name: dt.String(), Layout: l.Strategy.String(), Divisions: l.Divisions()}
		if info.Divisions == nil {
			info.Divisions = []string{}
		}
		if sch, ok := s.codec.Registry.Lookup(dt); ok {
			info.DisplayName = sch.DisplayName
		}
		out = append(out, info)
	}
	return writeJSON(c, http.StatusOK, out)
}

type fieldInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Offset      int    `json:"offset"`
	Hidden      bool   `json:"hidden,omitempty"`
	Tab         string `json:"tab,omitempty"`
	Description string `json:"description,omitempty"`
}

type childInfo struct {
	Field      string `json:"field"`
	Type       string `json:"type"`
	CountField string `json:"countField,omitempty"`
}

type schemaInfo struct {
	Type             string      `json:"type"`
	DisplayName      string      `json:"displayName"`
	Size             int         `json:"size"`
	IdentifyingField string      `json:"identifyingField,omitempty"`
	CountSymbol      string      `json:"countSymbol,omitempty"`
	Fields           []fieldInfo `json:"fields"`
	Children         []childInfo `json:"children,omitempty"`
}

func (s *Server) handleSchema(c *echo.Context) error {
	dt, err := datatype.Parse(c.Param("type"))
	if err != nil {
		return writeError(c, http.StatusNotFound, err)
	}
	sch, err := s.codec.Registry.Get(dt)
	if err != nil {
		return writeError(c, http.StatusNotFound, err)
	}
	return writeJSON(c, http.StatusOK, describe(sch))
}

func describe(sch *schema.Schema) schemaInfo {
	info := schemaInfo{
		Type:             sch.Type.String(),
		DisplayName:      sch.DisplayName,
		Size:             sch.Size,
		IdentifyingField: sch.IdentifyingField,
		CountSymbol:      sch.CountSymbol,
	}
	for _, f := range sch.Fields {
		info.Fields = append(info.Fields, fieldInfo{
			Name:        f.Name,
			Type:        string(f.Type),
			Offset:      f.Offset,
			Hidden:      f.Hidden,
			Tab:         f.TabName,
			Description: f.Description,
		})
	}
	for _, child := range sch.Children {
		info.Children = append(info.Children, childInfo{Field: child.Field, Type: child.Type.String(), CountField: child.CountField})
	}
	return info
}

func (s *Server) handleParse(c *echo.Context) error {
	dt, body, err := s.fileRequest(c)
	if err != nil {
		return writeError(c, statusOf(err), err)
	}

	doc, err := s.codec.Dump(dt, body)
	if err != nil {
		return writeError(c, statusOf(err), err)
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, doc)
}

type serializeRequest struct {
	Base     string          `json:"base"`
	Document json.RawMessage `json:"document"`
}

func (s *Server) handleSerialize(c *echo.Context) error {
	dt, body, err := s.fileRequest(c)
	if err != nil {
		return writeError(c, statusOf(err), err)
	}

	var req serializeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if len(req.Document) == 0 {
		return writeError(c, http.StatusBadRequest, errors.New("document is missing"))
	}
	base, err := base64.StdEncoding.DecodeString(req.Base)
	if err != nil {
		return writeError(c, http.StatusBadRequest, fmt.Errorf("base: %w", err))
	}

	out, err := s.codec.Build(dt, base, req.Document)
	if err != nil {
		return writeError(c, statusOf(err), err)
	}
	return c.Blob(http.StatusOK, echo.MIMEOctetStream, out)
}

func (s *Server) handleVerify(c *echo.Context) error {
	dt, body, err := s.fileRequest(c)
	if err != nil {
		return writeError(c, statusOf(err), err)
	}

	report, err := s.codec.Verify(dt, body)
	if err != nil {
		return writeError(c, statusOf(err), err)
	}
	return writeJSON(c, http.StatusOK, report)
}

var errBodyTooLarge = errors.New("request body too large")

// fileRequest resolves the :type parameter and reads the bounded body.
func (s *Server) fileRequest(c *echo.Context) (datatype.DataType, []byte, error) {
	dt, err := datatype.Parse(c.Param("type"))
	if err != nil {
		return dt, nil, err
	}
	if !dt.IsFileType() {
		return dt, nil, fmt.Errorf("%w: %s is not a file type", datatype.ErrUnknownType, dt)
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, s.maxBodyBytes+1))
	if err != nil {
		return dt, nil, err
	}
	if int64(len(body)) > s.maxBodyBytes {
		return dt, nil, errBodyTooLarge
	}
	return dt, body, nil
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func statusOf(err error) int {
	var empty *elf.EmptyFileError
	var format *elf.FormatError
	switch {
	case errors.Is(err, datatype.ErrUnknownType):
		return http.StatusNotFound
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &empty), errors.As(err, &format), errors.Is(err, codec.ErrUnstable):
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

func kindOf(err error) string {
	var empty *elf.EmptyFileError
	var format *elf.FormatError
	switch {
	case errors.As(err, &empty):
		return "empty_file"
	case errors.As(err, &format):
		return "format_error"
	case errors.Is(err, datatype.ErrUnknownType):
		return "unknown_type"
	case errors.Is(err, codec.ErrUnstable):
		return "unstable"
	}
	return "invalid_request"
}

func writeError(c *echo.Context, status int, err error) error {
	return writeJSON(c, status, errorBody{Error: err.Error(), Kind: kindOf(err)})
}

func writeJSON(c *echo.Context, status int, v any) error {
	out, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Blob(status, echo.MIMEApplicationJSON, out)
}
