package veo3

import "fmt"

// continuityTemplate - 원격 모델에 이전 장면 맥락을 전달하는 문구
const continuityTemplate = "continuing from the scene where '%s', now show: %s"

// ScenePrompts - 2번째 장면부터 직전 장면의 원래 프롬프트를 포함하도록 재작성
func ScenePrompts(prompts []string) []string {
	result := make([]string, len(prompts))
	for i, prompt := range prompts {
		if i == 0 {
			result[i] = prompt
			continue
		}
		result[i] = fmt.Sprintf(continuityTemplate, prompts[i-1], prompt)
	}
	return result
}
