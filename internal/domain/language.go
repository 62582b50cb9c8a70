package domain

import "strings"

var languageByExtension = map[string]string{
	"py":    "Python",
	"js":    "JavaScript",
	"ts":    "TypeScript",
	"java":  "Java",
	"cpp":   "C++",
	"c":     "C",
	"cs":    "C#",
	"php":   "PHP",
	"rb":    "Ruby",
	"go":    "Go",
	"rs":    "Rust",
	"swift": "Swift",
	"kt":    "Kotlin",
	"scala": "Scala",
	"html":  "HTML",
	"css":   "CSS",
	"sql":   "SQL",
	"json":  "JSON",
	"xml":   "XML",
	"yaml":  "YAML",
	"yml":   "YAML",
	"md":    "Markdown",
	"txt":   "Text",
}

// DetectLanguage maps a file extension (without the dot) to a language name.
// Unknown extensions yield "Unknown".
func DetectLanguage(extension string) string {
	if lang, ok := languageByExtension[strings.ToLower(extension)]; ok {
		return lang
	}
	return "Unknown"
}

// FileExtension returns the extension of filename without the leading dot,
// or "" when the name has none.
func FileExtension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return filename[idx+1:]
}
