package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartUpload(t *testing.T, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadHandlerCreateRequiresFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewUploadHandler(nil, nil, nil, 0)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/uploads", nil)

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadHandlerCreateRejectsUnsupportedExtension(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewUploadHandler(nil, nil, nil, 0)

	body, contentType := multipartUpload(t, "grades.pdf", []byte("%PDF-"))
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/uploads", body)
	c.Request.Header.Set("Content-Type", contentType)

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNSUPPORTED_FILE")
}

func TestUploadHandlerCreateRejectsOversizedFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewUploadHandler(nil, nil, nil, 8)

	body, contentType := multipartUpload(t, "grades.csv", bytes.Repeat([]byte("a"), 64))
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/uploads", body)
	c.Request.Header.Set("Content-Type", contentType)

	handler.Create(c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILE_TOO_LARGE")
}
