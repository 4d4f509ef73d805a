package xls

type RawRecord struct {
	Type uint16
	Pos  int
	Data []byte
}

func RawRecords(stream []byte) []RawRecord {
	recs, _ := splitRecords(stream)
	out := make([]RawRecord, len(recs))
	for i, r := range recs {
		out[i] = RawRecord{Type: r.typ, Pos: r.pos, Data: r.data}
	}
	return out
}

const (
	RecBOF        = recBOF
	RecBoundSheet = recBoundSheet
	RecIndex      = recIndex
	RecDBCell     = recDBCell
	RecRow        = recRow
	RecMulRK      = recMulRK
	RecMulBlank   = recMulBlank
	RecNumber     = recNumber
	RecLabel      = recLabel
	RecLabelSST   = recLabelSST
	RecBlank      = recBlank
	RecRK         = recRK
	RecFormula    = recFormula
	RecString     = recString
)

func IsCellRecord(typ uint16) bool {
	return isCellRecord(typ)
}
