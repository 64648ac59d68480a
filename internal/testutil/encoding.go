package testutil

// EncodedSample is a short text in a legacy charset together with its UTF-8
// form. Charset is the MIME charset label a mailer would declare for it.
type EncodedSample struct {
	Name    string
	Charset string
	Raw     []byte
	UTF8    string
	// SingleByte samples decode deterministically without a declared
	// charset; multi-byte ones depend on detection.
	SingleByte bool
}

// EncodedSamples returns a fresh slice of samples; tests may mutate it.
func EncodedSamples() []EncodedSample {
	return []EncodedSample{
		{Name: "win1252 right quote", Charset: "windows-1252", Raw: []byte("Rand\x92s Opponent"), UTF8: "Rand’s Opponent", SingleByte: true},
		{Name: "win1252 en dash", Charset: "windows-1252", Raw: []byte("2020 \x96 2024"), UTF8: "2020 – 2024", SingleByte: true},
		{Name: "win1252 em dash", Charset: "windows-1252", Raw: []byte("Hello\x97World"), UTF8: "Hello—World", SingleByte: true},
		{Name: "win1252 double quotes", Charset: "windows-1252", Raw: []byte("\x93Hello\x94"), UTF8: "“Hello”", SingleByte: true},
		{Name: "win1252 trademark", Charset: "windows-1252", Raw: []byte("Brand\x99"), UTF8: "Brand™", SingleByte: true},
		{Name: "win1252 bullet", Charset: "windows-1252", Raw: []byte("\x95 Item"), UTF8: "• Item", SingleByte: true},
		{Name: "win1252 euro", Charset: "windows-1252", Raw: []byte("Price: \x80100"), UTF8: "Price: €100", SingleByte: true},

		{Name: "latin1 o acute", Charset: "iso-8859-1", Raw: []byte("Mir\xf3 - Picasso"), UTF8: "Miró - Picasso", SingleByte: true},
		{Name: "latin1 c cedilla", Charset: "iso-8859-1", Raw: []byte("Gar\xe7on"), UTF8: "Garçon", SingleByte: true},
		{Name: "latin1 u umlaut", Charset: "iso-8859-1", Raw: []byte("M\xfcnchen"), UTF8: "München", SingleByte: true},
		{Name: "latin1 n tilde", Charset: "iso-8859-1", Raw: []byte("Espa\xf1a"), UTF8: "España", SingleByte: true},
		{Name: "latin1 registered", Charset: "iso-8859-1", Raw: []byte("Laguiole.com \xae"), UTF8: "Laguiole.com ®", SingleByte: true},
		{Name: "latin1 degree", Charset: "iso-8859-1", Raw: []byte("25\xb0C"), UTF8: "25°C", SingleByte: true},

		{
			Name:    "shift-jis japanese",
			Charset: "Shift_JIS",
			Raw: []byte{
				0x93, 0xfa, 0x96, 0x7b, 0x8c, 0xea, 0x82, 0xcc, 0x83, 0x65, 0x83, 0x4c,
				0x83, 0x58, 0x83, 0x67, 0x83, 0x54, 0x83, 0x93, 0x83, 0x76, 0x83, 0x8b,
				0x82, 0xc5, 0x82, 0xb7, 0x81, 0x42, 0x82, 0xb1, 0x82, 0xea, 0x82, 0xcd,
				0x95, 0xb6, 0x8e, 0x9a, 0x89, 0xbb, 0x82, 0xaf, 0x82, 0xcc, 0x83, 0x65,
				0x83, 0x58, 0x83, 0x67, 0x82, 0xc9, 0x8e, 0x67, 0x97, 0x70, 0x82, 0xb3,
				0x82, 0xea, 0x82, 0xdc, 0x82, 0xb7, 0x81, 0x42,
			},
			UTF8: "日本語のテキストサンプルです。これは文字化けのテストに使用されます。",
		},
		{
			Name:    "gbk simplified chinese",
			Charset: "GBK",
			Raw: []byte{
				0xd5, 0xe2, 0xca, 0xc7, 0xd2, 0xbb, 0xb8, 0xf6, 0xd6, 0xd0, 0xce, 0xc4,
				0xce, 0xc4, 0xb1, 0xbe, 0xca, 0xbe, 0xc0, 0xfd, 0xa3, 0xac, 0xd3, 0xc3,
				0xd3, 0xda, 0xb2, 0xe2, 0xca, 0xd4, 0xd7, 0xd6, 0xb7, 0xfb, 0xb1, 0xe0,
				0xc2, 0xeb, 0xbc, 0xec, 0xb2, 0xe2, 0xb9, 0xa6, 0xc4, 0xdc, 0xa1, 0xa3,
			},
			UTF8: "这是一个中文文本示例，用于测试字符编码检测功能。",
		},
		{
			Name:    "big5 traditional chinese",
			Charset: "Big5",
			Raw: []byte{
				0xb3, 0x6f, 0xac, 0x4f, 0xa4, 0x40, 0xad, 0xd3, 0xc1, 0x63, 0xc5, 0xe9,
				0xa4, 0xa4, 0xa4, 0xe5, 0xbd, 0x64, 0xa8, 0xd2, 0xa1, 0x41, 0xa5, 0xce,
				0xa9, 0xf3, 0xb4, 0xfa, 0xb8, 0xd5, 0xa6, 0x72, 0xa4, 0xb8, 0xbd, 0x73,
				0xbd, 0x58, 0xb0, 0xbb, 0xb4, 0xfa, 0xa1, 0x43,
			},
			UTF8: "這是一個繁體中文範例，用於測試字元編碼偵測。",
		},
		{
			Name:    "euc-kr korean",
			Charset: "EUC-KR",
			Raw: []byte{
				0xc7, 0xd1, 0xb1, 0xdb, 0x20, 0xc5, 0xd8, 0xbd, 0xba, 0xc6, 0xae, 0x20,
				0xbb, 0xf9, 0xc7, 0xc3, 0xc0, 0xd4, 0xb4, 0xcf, 0xb4, 0xd9, 0x2e, 0x20,
				0xc0, 0xce, 0xc4, 0xda, 0xb5, 0xf9, 0x20, 0xb0, 0xa8, 0xc1, 0xf6, 0x20,
				0xc5, 0xd7, 0xbd, 0xba, 0xc6, 0xae, 0xbf, 0xeb, 0xc0, 0xd4, 0xb4, 0xcf,
				0xb4, 0xd9, 0x2e,
			},
			UTF8: "한글 텍스트 샘플입니다. 인코딩 감지 테스트용입니다.",
		},
	}
}
