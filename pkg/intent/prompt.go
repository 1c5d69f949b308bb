package intent

import (
	"encoding/json"
	"fmt"

	"github.com/igolaizola/songcraft/pkg/music"
)

const extractTemplate = `你是一个专业的音乐制作助手。请分析用户的音乐需求，只返回一个JSON对象。

用户描述："%s"

JSON格式：
{
    "style": "音乐风格（如：流行、电子、古典、爵士、摇滚、古风、轻音乐等）",
    "mood": "情绪（如：欢快、悲伤、激昂、轻松、浪漫、紧张、舒缓等）",
    "instruments": ["主要乐器1", "主要乐器2", "主要乐器3"],
    "tempo": "节奏描述（如：快速、中等、慢速、渐快、渐慢）",
    "duration": 20,
    "music_prompt": "用于音乐生成模型的详细英文提示词，描述风格、乐器、情绪和节奏"
}

示例：
用户输入："想要一首在海边散步时听的轻松音乐"
输出：
{
    "style": "轻音乐",
    "mood": "轻松、惬意",
    "instruments": ["钢琴", "弦乐", "海浪声"],
    "tempo": "慢速",
    "duration": 20,
    "music_prompt": "Relaxing beach walk music with gentle piano melody, soft string accompaniment, and subtle ocean wave sounds, creating a peaceful and soothing atmosphere, slow tempo"
}

用户输入："激昂的战斗游戏配乐"
输出：
{
    "style": "史诗音乐",
    "mood": "激昂、紧张",
    "instruments": ["管弦乐", "鼓", "合唱"],
    "tempo": "快速",
    "duration": 20,
    "music_prompt": "Epic battle music with powerful orchestra, dramatic drums, and choir vocals, creating intense and heroic atmosphere, fast tempo"
}
`

const refineTemplate = `原始音乐描述：
%s

用户反馈："%s"

请根据用户反馈调整音乐描述，返回更新后的JSON对象，字段与原始描述相同。
重点调整music_prompt字段，使其更符合用户的要求。
`

func extractPrompt(text string) string {
	return fmt.Sprintf(extractTemplate, text)
}

func refinePrompt(previous music.Spec, feedback string) (string, error) {
	js, err := json.MarshalIndent(previous, "", "  ")
	if err != nil {
		return "", fmt.Errorf("intent: couldn't marshal spec: %w", err)
	}
	return fmt.Sprintf(refineTemplate, string(js), feedback), nil
}
