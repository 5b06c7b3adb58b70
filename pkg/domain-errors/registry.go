package domainerrors

import (
	"net/http"
	"sort"
)

// Category tells API clients whose side an error is on.
type Category string

const (
	CategoryClient Category = "client_error"
	CategoryServer Category = "server_error"
)

// Kind separates business-rule outcomes, which are reported inside a
// successful response, from infrastructure failures, which are not.
type Kind string

const (
	KindBusiness       Kind = "business"
	KindInfrastructure Kind = "infrastructure"
)

// Spec is the registered description of a Code. Specs are immutable and the
// registry is read-only after package initialization.
type Spec struct {
	Code       Code
	Number     int
	Message    string
	Category   Category
	Retryable  bool
	HTTPStatus int
	Kind       Kind
}

// IsBusiness reports whether the code is a business-rule outcome.
func (s Spec) IsBusiness() bool {
	return s.Kind == KindBusiness
}

var registry = buildRegistry(
	// Platform.
	Spec{CodeBadRequest, 1000, "Некорректный запрос", CategoryClient, false, http.StatusBadRequest, KindInfrastructure},
	Spec{CodeValidation, 1001, "Ошибка валидации входных данных", CategoryClient, false, http.StatusUnprocessableEntity, KindInfrastructure},
	Spec{CodeUnauthorized, 1002, "Требуется аутентификация", CategoryClient, false, http.StatusUnauthorized, KindInfrastructure},
	Spec{CodeForbidden, 1003, "Доступ запрещен", CategoryClient, false, http.StatusForbidden, KindInfrastructure},
	Spec{CodeNotFound, 1004, "Ресурс не найден", CategoryClient, false, http.StatusNotFound, KindInfrastructure},
	Spec{CodeConflict, 1005, "Конфликт состояния ресурса", CategoryClient, false, http.StatusConflict, KindInfrastructure},
	Spec{CodeTimeout, 1006, "Превышено время ожидания", CategoryServer, true, http.StatusGatewayTimeout, KindInfrastructure},
	Spec{CodeInternal, 1007, "Внутренняя ошибка сервиса", CategoryServer, false, http.StatusInternalServerError, KindInfrastructure},
	Spec{CodeServiceUnavailable, 1008, "Внешний сервис временно недоступен", CategoryServer, true, http.StatusServiceUnavailable, KindInfrastructure},
	Spec{CodeRateLimited, 1009, "Слишком много запросов", CategoryClient, true, http.StatusTooManyRequests, KindInfrastructure},

	// Acquire.
	Spec{CodeFileEmpty, 2000, "Файл пустой", CategoryClient, false, http.StatusBadRequest, KindInfrastructure},
	Spec{CodeUnsupportedFileType, 2001, "Неподдерживаемый тип файла", CategoryClient, false, http.StatusUnsupportedMediaType, KindInfrastructure},
	Spec{CodeFileTooLarge, 2002, "Размер файла превышает допустимый", CategoryClient, false, http.StatusRequestEntityTooLarge, KindInfrastructure},
	Spec{CodePDFTooManyPages, 2003, "Количество страниц PDF превышает допустимое", CategoryClient, false, http.StatusUnprocessableEntity, KindInfrastructure},
	Spec{CodeFileSaveFailed, 2004, "Не удалось сохранить файл", CategoryServer, true, http.StatusInternalServerError, KindInfrastructure},

	// Recognize.
	Spec{CodeOCRFailed, 3000, "Ошибка распознавания текста", CategoryServer, true, http.StatusBadGateway, KindInfrastructure},
	Spec{CodeOCREmpty, 3001, "В документе не найден текст", CategoryClient, false, http.StatusOK, KindBusiness},

	// Classify.
	Spec{CodeLLMClassifyFailed, 4000, "Ошибка определения типа документа", CategoryServer, true, http.StatusBadGateway, KindInfrastructure},
	Spec{CodeDocTypeParseError, 4001, "Некорректный ответ классификатора документа", CategoryServer, true, http.StatusBadGateway, KindInfrastructure},
	Spec{CodeMultipleDocuments, 4002, "В файле обнаружено несколько типов документов", CategoryClient, false, http.StatusOK, KindBusiness},

	// Extract.
	Spec{CodeLLMExtractFailed, 5000, "Ошибка извлечения данных документа", CategoryServer, true, http.StatusBadGateway, KindInfrastructure},
	Spec{CodeExtractSchemaMismatch, 5001, "Ответ извлечения не соответствует схеме", CategoryServer, true, http.StatusBadGateway, KindInfrastructure},

	// Validate.
	Spec{CodeFIOMissing, 6000, "ФИО в документе не найдено", CategoryClient, false, http.StatusOK, KindBusiness},
	Spec{CodeFIOMismatch, 6001, "ФИО в документе не совпадает с ФИО заявителя", CategoryClient, false, http.StatusOK, KindBusiness},
	Spec{CodeDocDateMissing, 6002, "Дата документа отсутствует или некорректна", CategoryClient, false, http.StatusOK, KindBusiness},
	Spec{CodeDocDateTooOld, 6003, "Срок действия документа истек", CategoryClient, false, http.StatusOK, KindBusiness},
	Spec{CodeDocTypeUnknown, 6004, "Тип документа не входит в перечень допустимых", CategoryClient, false, http.StatusOK, KindBusiness},

	// Fallbacks.
	Spec{CodeUnknown, 9000, "Неизвестная ошибка", CategoryServer, false, http.StatusInternalServerError, KindInfrastructure},
	Spec{CodeArtifactWriteFailed, 9001, "Не удалось сохранить результат проверки", CategoryServer, true, http.StatusInternalServerError, KindInfrastructure},
)

func buildRegistry(specs ...Spec) map[Code]Spec {
	m := make(map[Code]Spec, len(specs))
	for _, s := range specs {
		if _, dup := m[s.Code]; dup {
			panic("domainerrors: duplicate code " + string(s.Code))
		}
		m[s.Code] = s
	}
	return m
}

// Lookup returns the registered Spec for code.
func Lookup(code Code) (Spec, bool) {
	s, ok := registry[code]
	return s, ok
}

// SpecOf resolves the Spec for err's code. Unregistered codes and uncoded
// errors resolve to the CodeInternal spec.
func SpecOf(err error) Spec {
	if s, ok := registry[CodeOf(err)]; ok {
		return s
	}
	return registry[CodeInternal]
}

// All returns every registered Spec ordered by Number.
func All() []Spec {
	out := make([]Spec, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
