package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewMockForTests returns a Store backed by an in-process fake S3 transport
// supporting Head, Get, Put and ListObjectsV2 on a single bucket.
func NewMockForTests() *Store {
	rt := &mockTransport{objects: make(map[string]mockObject)}
	cfg, _ := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})
	return &Store{client: client, bucket: "mock-bucket"}
}

type mockTransport struct {
	mu      sync.Mutex
	objects map[string]mockObject
}

type mockObject struct {
	body        []byte
	contentType string
	modified    time.Time
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return m.list(req.URL.Query().Get("prefix")), nil
	}
	switch req.Method {
	case http.MethodHead:
		obj, ok := m.objects[key]
		if !ok {
			return respond(http.StatusNotFound, nil, http.Header{}), nil
		}
		return respond(http.StatusOK, nil, obj.header()), nil
	case http.MethodGet:
		obj, ok := m.objects[key]
		if !ok {
			body := []byte("<?xml version=\"1.0\"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>")
			return respond(http.StatusNotFound, body, http.Header{"Content-Type": {"application/xml"}}), nil
		}
		return respond(http.StatusOK, obj.body, obj.header()), nil
	case http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") || req.Header.Get("X-Amz-Decoded-Content-Length") != "" {
			if decoded, ok := decodeChunked(body); ok {
				body = decoded
			}
		}
		if _, exists := m.objects[key]; !exists {
			m.objects[key] = mockObject{body: body, contentType: req.Header.Get("Content-Type"), modified: time.Now().UTC()}
		}
		return respond(http.StatusOK, nil, http.Header{"ETag": {"\"etag\""}}), nil
	}
	return respond(http.StatusNotImplemented, nil, http.Header{}), nil
}

func (m *mockTransport) list(prefix string) *http.Response {
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\"?><ListBucketResult><IsTruncated>false</IsTruncated>")
	for _, k := range keys {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>", k, len(m.objects[k].body))
	}
	b.WriteString("</ListBucketResult>")
	return respond(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}})
}

func (o mockObject) header() http.Header {
	return http.Header{
		"Content-Length": {strconv.Itoa(len(o.body))},
		"Content-Type":   {o.contentType},
		"ETag":           {"\"etag\""},
		"Last-Modified":  {o.modified.Format(http.TimeFormat)},
	}
}

func respond(status int, body []byte, h http.Header) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body)), Header: h, ContentLength: int64(len(body))}
}

// decodeChunked strips aws-chunked framing: repeated "<hex>[;ext]\r\n<data>\r\n"
// terminated by a zero-size chunk and optional trailers.
func decodeChunked(b []byte) ([]byte, bool) {
	var out []byte
	for {
		line := bytes.IndexByte(b, '\n')
		if line < 0 {
			return nil, false
		}
		header := strings.TrimSpace(string(b[:line]))
		if i := strings.IndexByte(header, ';'); i >= 0 {
			header = header[:i]
		}
		size, err := strconv.ParseInt(header, 16, 64)
		if err != nil {
			return nil, false
		}
		b = b[line+1:]
		if size == 0 {
			return out, true
		}
		if int64(len(b)) < size {
			return nil, false
		}
		out = append(out, b[:size]...)
		b = bytes.TrimPrefix(b[size:], []byte("\r\n"))
	}
}
