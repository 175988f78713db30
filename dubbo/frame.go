/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package dubbo implements the Dubbo wire frame: a 16-byte header
// preceding a Hessian-2 body, and the request/response records carried
// in that body.
package dubbo

import (
	"encoding/binary"

	"github.com/go-mesh/dubbo-client/internal/errs"
)

// Constants for the frame header layout.
const (
	HeaderLength = 16
	MagicHigh    = byte(0xda)
	MagicLow     = byte(0xbb)

	FlagRequest       = byte(0x80)
	FlagTwoWay        = byte(0x40)
	FlagEvent         = byte(0x20)
	SerializationMask = byte(0x1f)

	Hessian2 = byte(2)
)

// Status codes carried in byte 3 of a response header.
const (
	StatusOK                  = byte(20)
	StatusClientTimeout       = byte(30)
	StatusServerTimeout       = byte(31)
	StatusBadRequest          = byte(40)
	StatusBadResponse         = byte(50)
	StatusServiceNotFound     = byte(60)
	StatusServiceError        = byte(70)
	StatusServerError         = byte(80)
	StatusClientError         = byte(90)
)

// Kind classifies a parsed header per §4.2.
type Kind int

const (
	KindHeartbeatRequest Kind = iota
	KindHeartbeatResponse
	KindNormalResponse
)

// Header is a parsed 16-byte frame header.
type Header struct {
	Kind          Kind
	Status        byte
	InvocationID  int64
	BodyLength    int32
}

// EncodeRequestHeader writes a 16-byte two-way Hessian request header
// for the given invocation id and body length.
func EncodeRequestHeader(invocationID int64, bodyLength int32) []byte {
	h := make([]byte, HeaderLength)
	h[0], h[1] = MagicHigh, MagicLow
	h[2] = FlagRequest | FlagTwoWay | Hessian2
	h[3] = 0
	binary.BigEndian.PutUint64(h[4:12], uint64(invocationID))
	binary.BigEndian.PutUint32(h[12:16], uint32(bodyLength))
	return h
}

// EncodeHeartbeatRequest writes a 16-byte heartbeat request header; the
// body is always zero-length.
func EncodeHeartbeatRequest(invocationID int64) []byte {
	h := make([]byte, HeaderLength)
	h[0], h[1] = MagicHigh, MagicLow
	h[2] = FlagRequest | FlagEvent | Hessian2
	h[3] = 0
	binary.BigEndian.PutUint64(h[4:12], uint64(invocationID))
	return h
}

// EncodeHeartbeatResponse writes a 16-byte heartbeat response header
// plus its one-byte 'N' (null) body.
func EncodeHeartbeatResponse(invocationID int64) []byte {
	h := make([]byte, HeaderLength+1)
	h[0], h[1] = MagicHigh, MagicLow
	h[2] = FlagEvent | Hessian2
	h[3] = StatusOK
	binary.BigEndian.PutUint64(h[4:12], uint64(invocationID))
	binary.BigEndian.PutUint32(h[12:16], 1)
	h[16] = 'N'
	return h
}

// ParseHeader classifies a 16-byte frame header per §4.2. Magic mismatch
// is a fatal protocol error; the caller must close the connection.
func ParseHeader(h []byte) (Header, error) {
	if len(h) != HeaderLength {
		return Header{}, errs.Wrap(errs.ErrProtocol, "frame header must be %d bytes, got %d", HeaderLength, len(h))
	}
	if h[0] != MagicHigh || h[1] != MagicLow {
		return Header{}, errs.Wrap(errs.ErrProtocol, "bad magic 0x%02x%02x", h[0], h[1])
	}
	flag := h[2]
	status := h[3]
	invocationID := int64(binary.BigEndian.Uint64(h[4:12]))
	bodyLength := int32(binary.BigEndian.Uint32(h[12:16]))
	if bodyLength < 0 {
		return Header{}, errs.Wrap(errs.ErrProtocol, "negative body length %d", bodyLength)
	}

	isRequest := flag&FlagRequest != 0
	isEvent := flag&FlagEvent != 0

	switch {
	case isEvent && isRequest:
		return Header{Kind: KindHeartbeatRequest, Status: status, InvocationID: invocationID, BodyLength: bodyLength}, nil
	case isEvent && !isRequest:
		if status != StatusOK {
			return Header{}, errs.Wrap(errs.ErrRemoteResponse, "heartbeat response status %d", status)
		}
		return Header{Kind: KindHeartbeatResponse, Status: status, InvocationID: invocationID, BodyLength: bodyLength}, nil
	default:
		return Header{Kind: KindNormalResponse, Status: status, InvocationID: invocationID, BodyLength: bodyLength}, nil
	}
}

// StatusText names the error kind a non-OK status maps to, per the
// external status-code table.
func StatusText(status byte) string {
	switch status {
	case StatusOK:
		return "ok"
	case StatusClientTimeout:
		return "client timeout"
	case StatusServerTimeout:
		return "server timeout"
	case StatusBadRequest:
		return "bad request"
	case StatusBadResponse:
		return "bad response"
	case StatusServiceNotFound:
		return "service not found"
	case StatusServiceError:
		return "service error"
	case StatusServerError:
		return "server error"
	case StatusClientError:
		return "client error"
	default:
		return "unknown status"
	}
}
