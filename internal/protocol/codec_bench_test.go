package protocol

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
)

func productListFrame(n int) string {
	m := NewSuccess(strconv.Itoa(n))
	for i := 1; i <= n; i++ {
		m.AppendFields(strconv.Itoa(i), "product "+strconv.Itoa(i), "9.99", "100", "")
	}
	wire, _ := Encode(m)
	return wire
}

func BenchmarkDecode_Login(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Decode("<0001><alice><secret1>"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecode_ProductList(b *testing.B) {
	frame := productListFrame(100)
	b.SetBytes(int64(len(frame)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(frame); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncode_ProductList(b *testing.B) {
	m, err := Decode(productListFrame(100))
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Encode(m); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFrameReader(b *testing.B) {
	input := strings.Repeat("<0301>\n", 1000)
	b.SetBytes(int64(len(input)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		r := NewFrameReader(bytes.NewReader([]byte(input)), DefaultMaxFrameSize)
		for j := 0; j < 1000; j++ {
			if _, err := r.ReadMessage(); err != nil {
				b.Fatal(err)
			}
		}
	}
}
