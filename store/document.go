package store

import (
	"encoding/hex"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/nomis52/featurebatch/features"
)

type keypointDoc struct {
	X     int `yaml:"x"`
	Y     int `yaml:"y"`
	Score int `yaml:"score"`
}

func keypointsKey(index int) string   { return fmt.Sprintf("keypoints_%d", index) }
func descriptorsKey(index int) string { return fmt.Sprintf("descriptors_%d", index) }

// encode renders the document with keypoints before descriptors, one keypoint and
// one hex descriptor per line.
func encode(index int, set features.Set) ([]byte, error) {
	keypoints := &yaml.Node{Kind: yaml.SequenceNode}
	for _, kp := range set.Keypoints {
		var n yaml.Node
		if err := n.Encode(keypointDoc{X: kp.X, Y: kp.Y, Score: kp.Score}); err != nil {
			return nil, err
		}
		n.Style = yaml.FlowStyle
		keypoints.Content = append(keypoints.Content, &n)
	}

	descriptors := &yaml.Node{Kind: yaml.SequenceNode}
	for _, d := range set.Descriptors {
		descriptors.Content = append(descriptors.Content, &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Value: hex.EncodeToString(d[:]),
		})
	}

	doc := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: keypointsKey(index)}, keypoints,
			{Kind: yaml.ScalarNode, Value: descriptorsKey(index)}, descriptors,
		},
	}
	return yaml.Marshal(doc)
}

func decode(index int, data []byte) (features.Set, error) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return features.Set{}, fmt.Errorf("parsing item %d: %w", index, err)
	}

	var set features.Set

	var keypoints []keypointDoc
	if n, ok := doc[keypointsKey(index)]; ok {
		if err := n.Decode(&keypoints); err != nil {
			return features.Set{}, fmt.Errorf("decoding %s: %w", keypointsKey(index), err)
		}
	}
	for _, kp := range keypoints {
		set.Keypoints = append(set.Keypoints, features.Keypoint{X: kp.X, Y: kp.Y, Score: kp.Score})
	}

	var descriptors []string
	if n, ok := doc[descriptorsKey(index)]; ok {
		if err := n.Decode(&descriptors); err != nil {
			return features.Set{}, fmt.Errorf("decoding %s: %w", descriptorsKey(index), err)
		}
	}
	for i, s := range descriptors {
		var d features.Descriptor
		raw, err := hex.DecodeString(s)
		if err != nil {
			return features.Set{}, fmt.Errorf("descriptor %d: %w", i, err)
		}
		if len(raw) != len(d) {
			return features.Set{}, fmt.Errorf("descriptor %d: got %d bytes, want %d", i, len(raw), len(d))
		}
		copy(d[:], raw)
		set.Descriptors = append(set.Descriptors, d)
	}

	if len(set.Keypoints) != len(set.Descriptors) {
		return features.Set{}, fmt.Errorf("item %d: %d keypoints but %d descriptors", index, len(set.Keypoints), len(set.Descriptors))
	}
	return set, nil
}
