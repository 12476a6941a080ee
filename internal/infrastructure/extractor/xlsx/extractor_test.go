package xlsx

import (
	"context"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExtractFlattensSheetsInOrder(t *testing.T) {
	book := excelize.NewFile()
	defer book.Close()
	if err := book.SetCellValue("Sheet1", "A1", "produto"); err != nil {
		t.Fatalf("SetCellValue() error = %v", err)
	}
	_ = book.SetCellValue("Sheet1", "B1", "preço")
	_ = book.SetCellValue("Sheet1", "A2", "café")
	_ = book.SetCellValue("Sheet1", "B2", 12)
	if _, err := book.NewSheet("Resumo"); err != nil {
		t.Fatalf("NewSheet() error = %v", err)
	}
	_ = book.SetCellValue("Resumo", "A1", "total")
	_ = book.SetCellValue("Resumo", "B1", 12)

	buf, err := book.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}

	text, err := NewExtractor().Extract(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := "Sheet1\nproduto\tpreço\ncafé\t12\nResumo\ntotal\t12"
	if text != want {
		t.Fatalf("unexpected text:\nwant %q\ngot  %q", want, text)
	}
}

func TestExtractRejectsGarbage(t *testing.T) {
	if _, err := NewExtractor().Extract(context.Background(), []byte("not a zip")); err == nil {
		t.Fatalf("expected error for non-xlsx input")
	}
}
