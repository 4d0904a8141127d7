package handlers

import "fmt"

// validateRoomCode はルームコードのバリデーションを行います
// コードが空の場合はエラーを返します
func validateRoomCode(code string) error {
	if normalizeID(code) == "" {
		return fmt.Errorf("room code required")
	}
	return nil
}

// validateImageRef は画像参照のバリデーションを行います
func validateImageRef(ref string) error {
	if normalizeID(ref) == "" {
		return fmt.Errorf("image ref required")
	}
	return nil
}
