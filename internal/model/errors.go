// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string `json:"code"`     // エラーコード
	Message  string `json:"message"`  // エラーメッセージ
	Category string `json:"category"` // カテゴリ: validation, comment, user, system
	Action   string `json:"action"`   // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidFilter     = "INVALID_FILTER"
	ErrCodeInvalidPagination = "INVALID_PAGINATION"
	ErrCodeCommentNotFound   = "COMMENT_NOT_FOUND"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeUnknownCity       = "UNKNOWN_CITY"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewInvalidFilterError は無効なフィルタエラーを生成する。
func NewInvalidFilterError(filter string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("無効なフィルタです: %s", filter),
		Category: "validation",
		Action:   "since には 1、7、30、365 のいずれかを、author には数値のユーザーIDをカンマ区切りで、order には score、likes、dislikes、controversial のいずれかを指定してください。",
	}
}

// NewInvalidPaginationError は無効なページ指定エラーを生成する。
func NewInvalidPaginationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPagination,
		Message:  fmt.Sprintf("無効なページ指定です: %s", reason),
		Category: "validation",
		Action:   "page と itemsPerPage には1以上の整数を指定してください。",
	}
}

// NewCommentNotFoundError はコメント未検出エラーを生成する。
func NewCommentNotFoundError(commentID int64) *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("指定されたコメントが見つかりません: %d", commentID),
		Category: "comment",
		Action:   "コメントIDを確認してください。",
	}
}

// NewUserNotFoundError は投稿者未検出エラーを生成する。
func NewUserNotFoundError(userID int64) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定された投稿者が見つかりません: %d", userID),
		Category: "user",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewUnknownCityError は未登録の都市が指定された場合のエラーを生成する。
func NewUnknownCityError(city string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownCity,
		Message:  fmt.Sprintf("未登録の都市です: %s", city),
		Category: "validation",
		Action:   "/sites で取得できる都市コードを指定してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-After ヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。原因の詳細は含めない。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。解決しない場合はrequest_idを添えてお問い合わせください。",
	}
}
