package extract

// 提取方式
const (
	MethodNative = "native-text"
	MethodOCR    = "ocr"
)

// PageResult 单页提取结果
type PageResult struct {
	PageNumber int      `json:"page_number"`
	Text       string   `json:"text"`
	Method     string   `json:"method"`
	Confidence *float64 `json:"confidence,omitempty"` // OCR平均置信度，原生提取为nil
	Err        string   `json:"error,omitempty"`
	Success    bool     `json:"success"`
}

// Stats 提取统计
type Stats struct {
	TotalPages  int `json:"total_pages"`
	NativePages int `json:"native_pages"`
	OCRPages    int `json:"ocr_pages"`
	FailedPages int `json:"failed_pages"`
}

// Result 整篇文档的提取结果
type Result struct {
	Success  bool         `json:"success"`
	Pages    []PageResult `json:"pages"`
	Errors   []string     `json:"errors,omitempty"`
	Stats    Stats        `json:"stats"`
	FullText string       `json:"-"`
}

// Metadata PDF文档元数据
type Metadata struct {
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	CreationDate string `json:"creation_date,omitempty"`
	PageCount    int    `json:"page_count"`
	Encrypted    bool   `json:"encrypted"`
	SizeBytes    int64  `json:"size_bytes"`
}
