package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName content-subtype，請求的 content-type 為 application/grpc+json
const CodecName = "json"

// jsonCodec 以 JSON 編碼 gRPC 訊息，服務不需要 protoc 產生的程式碼
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
