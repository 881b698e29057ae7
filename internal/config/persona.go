package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Persona is what the agent is told to be and what it says first.
type Persona struct {
	Name         string `yaml:"name" validate:"required"`
	Instructions string `yaml:"instructions" validate:"required"`
	Greeting     string `yaml:"greeting" validate:"required"`
}

func (p Persona) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return fmt.Errorf("invalid persona: %w", err)
	}
	return nil
}

func LoadPersona(path string) (Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("read persona: %w", err)
	}
	p := DefaultPersona()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Persona{}, fmt.Errorf("parse persona %s: %w", path, err)
	}
	return p, p.Validate()
}

func DefaultPersona() Persona {
	return Persona{
		Name: "Alex",
		Instructions: `You are Alex, a Tier 1 technical support specialist for TechFlow Solutions.
Listen to the caller's problem, ask clarifying questions and give step-by-step troubleshooting.
Before answering a factual question, call check_knowledge_base with the question.
If the knowledge base has no answer, call escalate_to_supervisor with the question and a short
summary of the conversation so far. Never invent business facts.
Support hours: 24/7. Website: www.techflow.example.com.`,
		Greeting: "Hello! Thank you for calling TechFlow Solutions Support. My name is Alex. How can I help you with your technical issue today?",
	}
}
